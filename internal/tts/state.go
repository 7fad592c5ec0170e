package tts

import (
	"sync"

	"github.com/iabetor/speak/internal/logger"
)

// AdapterState 表示合成器的生命周期状态。
type AdapterState int

const (
	// StateUninitialized — 已创建，尚未 Init。
	StateUninitialized AdapterState = iota
	// StateReady — 可以接受合成请求。
	StateReady
	// StateSynthesizing — 正在调用引擎。
	StateSynthesizing
	// StateDisposed — 已释放，不再可用。
	StateDisposed
)

var stateNames = [...]string{
	"Uninitialized",
	"Ready",
	"Synthesizing",
	"Disposed",
}

func (s AdapterState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// stateMachine 管理线程安全的状态转换。
type stateMachine struct {
	mu      sync.RWMutex
	current AdapterState
}

func newStateMachine() *stateMachine {
	return &stateMachine{current: StateUninitialized}
}

// Current 返回当前状态。
func (sm *stateMachine) Current() AdapterState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Transition 尝试切换状态。只有合法的转换才会生效：
//
//	Uninitialized → Ready         （Init）
//	Ready         → Ready         （重复 Init）
//	Ready         → Synthesizing  （开始合成）
//	Synthesizing  → Ready         （合成结束）
//
// 除 Disposed 外任何状态都可以转换到 Disposed。
func (sm *stateMachine) Transition(to AdapterState) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !validTransition(sm.current, to) {
		logger.Debugf("[tts] 非法状态转换 %s → %s", sm.current, to)
		return false
	}

	from := sm.current
	sm.current = to
	logger.Debugf("[tts] %s → %s", from, to)
	return true
}

// validTransition 检查状态转换是否合法。
func validTransition(from, to AdapterState) bool {
	if from == StateDisposed {
		return false
	}
	if to == StateDisposed {
		return true
	}
	switch from {
	case StateUninitialized:
		return to == StateReady
	case StateReady:
		return to == StateReady || to == StateSynthesizing
	case StateSynthesizing:
		return to == StateReady
	}
	return false
}
