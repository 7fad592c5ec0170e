package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// runner 执行外部命令并返回标准输出。stdin 为 nil 时不接标准输入。
type runner func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)

func runCommand(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s 执行失败: %w, stderr: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s 执行失败: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// lookBinary 返回 candidates 中第一个能在 PATH 中找到的程序。
func lookBinary(candidates ...string) (string, error) {
	for _, c := range candidates {
		if path, err := exec.LookPath(c); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("未找到可执行程序: %s", strings.Join(candidates, ", "))
}
