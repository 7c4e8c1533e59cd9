package tasks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/xemonbae01/Game-idea/internal/domain"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// 定义任务类型常量
const (
	TypeSessionStarted = "session:started" // 对局开始审计任务
	TypeRoomClosed     = "room:closed"     // 房间销毁审计任务
)

// 审计任务所在的队列，优先级低于业务队列
const QueueAudit = "low"

// RoomEventPayload 是审计任务的数据结构，携带事件发生时的房间视图
type RoomEventPayload struct {
	Room       domain.PublicView `json:"room"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// NewRoomEventTask 创建审计任务
func NewRoomEventTask(taskType string, view domain.PublicView, at time.Time) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(RoomEventPayload{Room: view, OccurredAt: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, payloadBytes, asynq.Queue(QueueAudit), asynq.MaxRetry(5)), nil
}

// Enqueuer 是 asynq.Client 中被使用的部分
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Recorder 把房间事件转成异步任务，由 worker 写入审计表。
// Record* 只把任务放入缓冲队列，入队 Redis 由后台 goroutine 完成，
// 调用方（Hub 的事件循环）不会等待网络往返。队列满或入队失败只记录日志。
type Recorder struct {
	client  Enqueuer
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	queue  chan *asynq.Task
	done   chan struct{}
}

// 默认的待入队任务缓冲容量
const recorderBufferSize = 256

// NewRecorder 创建 Recorder 并启动后台入队 goroutine，使用完毕后需调用 Close
func NewRecorder(client Enqueuer) *Recorder {
	if client == nil {
		panic("Enqueuer cannot be nil for Recorder")
	}
	r := &Recorder{
		client:  client,
		timeout: 2 * time.Second,
		now:     time.Now,
		queue:   make(chan *asynq.Task, recorderBufferSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) RecordSessionStarted(ctx context.Context, view domain.PublicView) {
	r.submit(TypeSessionStarted, view)
}

func (r *Recorder) RecordRoomClosed(ctx context.Context, view domain.PublicView) {
	r.submit(TypeRoomClosed, view)
}

// Close 停止接收新任务，并等待已缓冲的任务入队完成
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) submit(taskType string, view domain.PublicView) {
	logCtx := logrus.WithFields(logrus.Fields{"task_type": taskType, "room_id": view.ID})

	task, err := NewRoomEventTask(taskType, view, r.now())
	if err != nil {
		logCtx.WithError(err).Error("Failed to build audit task")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		logCtx.Warn("Recorder closed, audit task dropped")
		return
	}
	select {
	case r.queue <- task:
	default:
		logCtx.Warn("Audit queue full, audit task dropped")
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for task := range r.queue {
		r.enqueue(task)
	}
}

func (r *Recorder) enqueue(task *asynq.Task) {
	logCtx := logrus.WithField("task_type", task.Type())

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	info, err := r.client.EnqueueContext(ctx, task)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to enqueue audit task")
		return
	}
	logCtx.WithField("task_id", info.ID).Debug("Audit task enqueued")
}
