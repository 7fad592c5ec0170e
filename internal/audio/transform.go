package audio

// ApplyVolume 按线性增益缩放所有样本，gain 被限制在 [0, 1]。
func ApplyVolume(samples []float32, gain float64) {
	if gain >= 1 {
		return
	}
	if gain < 0 {
		gain = 0
	}
	g := float32(gain)
	for i := range samples {
		samples[i] *= g
	}
}

// PrependSilence 在流的开头插入 n 个静音样本（交错计数，应为声道数的整数倍）。
// 部分音频设备会吞掉输出开头的一小段，前置静音用来规避。
func PrependSilence(s *Stream, n int) {
	if n <= 0 {
		return
	}
	n -= n % s.Channels
	padded := make([]float32, n+len(s.Samples))
	copy(padded[n:], s.Samples)
	s.Samples = padded
}

// SilenceSamples 计算 delayMs 毫秒前置静音对应的交错样本数。
func SilenceSamples(sampleRate, channels int, delayMs float64) int {
	if delayMs <= 0 {
		return 0
	}
	return int(float64(sampleRate)*delayMs/1000) * channels
}

// Peak 返回样本绝对值的最大值。
func Peak(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
