package domain

import "time"

// BatchRun — один запуск пакетной генерации эмбеддингов. Не сохраняется, нужен только для отчёта.
type BatchRun struct {
	ID          string            `json:"id"`
	FullRefresh bool              `json:"full_refresh"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Partitions  []PartitionReport `json:"partitions"`
}

// PartitionReport — счётчики по одной партиции.
type PartitionReport struct {
	Partition             string        `json:"partition"`
	Considered            int           `json:"considered"`
	Downloaded            int           `json:"downloaded"`
	Skipped               int           `json:"skipped"`
	Localized             int           `json:"localized"`
	LocalizationFallbacks int           `json:"localization_fallbacks"`
	Embedded              int           `json:"embedded"`
	Failed                int           `json:"failed"`
	Persisted             int           `json:"persisted"`
	Checkpoints           int           `json:"checkpoints"`
	Duration              time.Duration `json:"duration"`
	Error                 string        `json:"error,omitempty"`
}

func NewBatchRun(id string, fullRefresh bool, startedAt time.Time) *BatchRun {
	return &BatchRun{
		ID:          id,
		FullRefresh: fullRefresh,
		StartedAt:   startedAt,
	}
}

// Failed сообщает, завершилась ли хоть одна партиция фатальной ошибкой.
func (b *BatchRun) Failed() bool {
	for _, p := range b.Partitions {
		if p.Error != "" {
			return true
		}
	}

	return false
}

// Totals суммирует счётчики по всем партициям.
func (b *BatchRun) Totals() PartitionReport {
	total := PartitionReport{Partition: "total"}
	for _, p := range b.Partitions {
		total.Considered += p.Considered
		total.Downloaded += p.Downloaded
		total.Skipped += p.Skipped
		total.Localized += p.Localized
		total.LocalizationFallbacks += p.LocalizationFallbacks
		total.Embedded += p.Embedded
		total.Failed += p.Failed
		total.Persisted += p.Persisted
		total.Checkpoints += p.Checkpoints
		total.Duration += p.Duration
	}

	return total
}
