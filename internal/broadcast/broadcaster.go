package broadcast

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/MarketMind/internal/domain"
)

// defaultBufferSize — размер буфера канала подписчика.
// Подписчик, не успевающий вычитывать буфер, отписывается автоматически.
const defaultBufferSize = 16

// Subscription — живая подписка на события одного run.
//
// Эфемерна: создаётся при подключении клиента, уничтожается при
// отключении или при сбое доставки. Не персистится.
type Subscription struct {
	runID uuid.UUID
	ch    chan domain.Event

	closeOnce sync.Once
}

// Events возвращает канал событий подписки.
// Канал закрывается при отписке и при завершении run.
func (s *Subscription) Events() <-chan domain.Event {
	return s.ch
}

// RunID возвращает run, на который оформлена подписка.
func (s *Subscription) RunID() uuid.UUID {
	return s.runID
}

// close закрывает канал ровно один раз.
func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		close(s.ch)
	})
}

// Broadcaster — реестр подписчиков по run и fan-out событий.
//
// Доставка каждому подписчику независима: сбой одного (переполненный
// буфер — клиент отвалился или не читает) не мешает остальным, а
// сбойный подписчик автоматически отписывается.
//
// Replay отсутствует: подписчик, подключившийся после публикации
// события, его не получит. Потребители восстанавливают состояние
// опросом самого run.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*Subscription]struct{}
	logger *slog.Logger

	bufferSize int
}

// New создаёт новый Broadcaster.
func New(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	return &Broadcaster{
		subs:       make(map[uuid.UUID]map[*Subscription]struct{}),
		logger:     logger,
		bufferSize: defaultBufferSize,
	}
}

// Subscribe регистрирует нового подписчика для run.
// Несколько одновременных подписок на один run допустимы.
func (b *Broadcaster) Subscribe(runID uuid.UUID) *Subscription {
	sub := &Subscription{
		runID: runID,
		ch:    make(chan domain.Event, b.bufferSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[runID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[runID] = set
	}
	set[sub] = struct{}{}

	return sub
}

// Unsubscribe удаляет подписку. Идемпотентна: повторный вызов для той
// же подписки — no-op, остальные подписчики не затрагиваются.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	b.removeLocked(sub)
	b.mu.Unlock()

	sub.close()
}

// removeLocked удаляет подписку из реестра. Вызывается под mu.
func (b *Broadcaster) removeLocked(sub *Subscription) {
	set, ok := b.subs[sub.runID]
	if !ok {
		return
	}

	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.runID)
	}
}

// Publish доставляет событие всем текущим подписчикам run.
//
// Отправка неблокирующая: подписчик с переполненным буфером считается
// сбойным, отписывается и его канал закрывается. Fan-out одного run
// не блокирует публикации других runs дольше, чем на время прохода
// по списку подписчиков.
func (b *Broadcaster) Publish(runID uuid.UUID, event domain.Event) {
	b.mu.Lock()
	set, ok := b.subs[runID]
	if !ok || len(set) == 0 {
		b.mu.Unlock()
		return
	}

	var failed []*Subscription
	for sub := range set {
		select {
		case sub.ch <- event:
		default:
			failed = append(failed, sub)
		}
	}

	for _, sub := range failed {
		b.removeLocked(sub)
	}
	b.mu.Unlock()

	for _, sub := range failed {
		sub.close()
		b.logger.Debug("dropped slow subscriber",
			"run_id", runID,
			"event_kind", event.Kind,
		)
	}
}

// CloseRun отписывает и закрывает всех подписчиков run.
// Вызывается движком после терминального события.
func (b *Broadcaster) CloseRun(runID uuid.UUID) {
	b.mu.Lock()
	set := b.subs[runID]
	delete(b.subs, runID)
	b.mu.Unlock()

	for sub := range set {
		sub.close()
	}
}

// SubscriberCount возвращает число подписчиков run.
func (b *Broadcaster) SubscriberCount(runID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[runID])
}

// TotalSubscribers возвращает суммарное число подписок (для метрик).
func (b *Broadcaster) TotalSubscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, set := range b.subs {
		total += len(set)
	}
	return total
}
