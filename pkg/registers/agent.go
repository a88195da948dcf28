package registers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lb-peak-collector/pkg/logger"
)

// State 调度状态，只能 Idle -> Running -> Done
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrAlreadyStarted Run 只能调用一次
var ErrAlreadyStarted = errors.New("agent already started")

// AgentImpl 实现 registers.Agent 接口
type AgentImpl struct {
	round      RoundCollector
	sink       Sink
	collectors []Collector
	rounds     int
	interval   time.Duration
	state      atomic.Int32
	mu         sync.Mutex
}

// NewAgent 创建调度器，rounds 在启动前已确定
func NewAgent(round RoundCollector, sink Sink, rounds int, interval time.Duration) *AgentImpl {
	return &AgentImpl{
		round:      round,
		sink:       sink,
		collectors: make([]Collector, 0),
		rounds:     rounds,
		interval:   interval,
	}
}

// Register 注册辅助采集器
func (r *AgentImpl) Register(c Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors = append(r.collectors, c)
}

func (r *AgentImpl) State() State {
	return State(r.state.Load())
}

// Run 依次执行全部轮次：采集 -> 持久化 -> 辅助采集 -> 进度日志 -> 休眠
// 任一轮采集或持久化失败立即返回，已落盘的轮次保持完整
func (r *AgentImpl) Run(ctx context.Context) (err error) {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("%w (state %s)", ErrAlreadyStarted, r.State())
	}
	defer r.state.Store(int32(StateDone))
	defer func() {
		if cerr := r.sink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close sink: %w", cerr)
		}
		_ = r.CloseAll()
	}()

	if err := r.InitAll(); err != nil {
		return err
	}

	logger.Info("collection started",
		zap.String("name", r.round.Name()),
		zap.Int("rounds", r.rounds),
		zap.Duration("interval", r.interval),
		zap.Int("registered-collectors-count", len(r.collectors)))

	for i := 1; i <= r.rounds; i++ {
		totals, err := r.round.RunRound(ctx)
		if err != nil {
			return fmt.Errorf("round %d/%d: %w", i, r.rounds, err)
		}
		if err := r.sink.Persist(totals); err != nil {
			return fmt.Errorf("round %d/%d: %w", i, r.rounds, err)
		}

		// 辅助采集失败不影响主流程
		_ = r.CollectAll(ctx)

		logger.Info(fmt.Sprintf("Sample %d/%d", i, r.rounds),
			zap.Time("timestamp", totals.Timestamp),
			zap.Int("lb_count", totals.LBCount),
			zap.Int("vs_count", totals.VSCount),
			zap.Float64("cps", totals.CPS),
			zap.Float64("l4_bytes", totals.L4Bytes),
			zap.Float64("tps", totals.TPS),
			zap.Float64("rps", totals.RPS),
			zap.Float64("ssl_bytes", totals.SSLBytes))

		// 最后一轮同样休眠
		if err := sleepWithContext(ctx, r.interval); err != nil {
			return fmt.Errorf("round %d/%d: %w", i, r.rounds, err)
		}
	}

	logger.Info("collection finished", zap.Int("rounds", r.rounds))
	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// InitAll 初始化所有辅助采集器
func (r *AgentImpl) InitAll() error {
	for _, coll := range r.collectors {
		if err := coll.Init(); err != nil {
			return fmt.Errorf("collector %s init failed: %w", coll.Name(), err)
		}
		logger.Debug("collector initialized successfully", zap.String("name", coll.Name()))
	}
	return nil
}

// CollectAll 批量采集，单个失败只告警
func (r *AgentImpl) CollectAll(ctx context.Context) error {
	var hasErr bool
	for _, c := range r.collectors {
		if err := c.Collect(ctx); err != nil {
			logger.Warn("collection failed", zap.String("name", c.Name()), zap.Error(err))
			hasErr = true
		}
	}
	if hasErr {
		return fmt.Errorf("some collectors failed to collect data")
	}
	return nil
}

// CloseAll 批量关闭，返回最后一个错误
func (r *AgentImpl) CloseAll() error {
	var lastErr error
	for _, c := range r.collectors {
		if err := c.Close(); err != nil {
			logger.Error("failed to close collector", zap.String("name", c.Name()), zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}
