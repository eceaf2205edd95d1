package policy

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TieBreak определяет, какая из равных по значению ставок считается лучшей.
type TieBreak string

const (
	Earliest TieBreak = "earliest"
	Latest   TieBreak = "latest"
)

// Duration - time.Duration, читаемая из YAML строкой вида "10s".
type Duration time.Duration

// UnmarshalYAML разбирает длительность.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Policy - настраиваемые правила диспута и обжалования.
type Policy struct {
	ConfirmationWindow     Duration `yaml:"confirmation_window"`
	BidDecrement           float64  `yaml:"bid_decrement"`
	ResourceSubmissionDays int      `yaml:"resource_submission_days"`
	CounterArgumentDays    int      `yaml:"counter_argument_days"`
	TieBreak               TieBreak `yaml:"tie_break"`
	RevalidateOnSettle     bool     `yaml:"revalidate_on_settle"`
	SettlementRetries      int      `yaml:"settlement_retries"`
	SettlementBackoff      Duration `yaml:"settlement_backoff"`
}

// Default возвращает правила по умолчанию.
func Default() Policy {
	return Policy{
		ConfirmationWindow:     Duration(10 * time.Second),
		BidDecrement:           0.01,
		ResourceSubmissionDays: 3,
		CounterArgumentDays:    3,
		TieBreak:               Earliest,
		RevalidateOnSettle:     false,
		SettlementRetries:      3,
		SettlementBackoff:      Duration(200 * time.Millisecond),
	}
}

// Load читает правила из YAML-файла. Отсутствующий файл означает правила по умолчанию,
// незаданные поля берутся из Default.
func Load(path string) (Policy, error) {
	p := Default()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("read policy: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse policy: %w", err)
	}
	return p, p.Validate()
}

// Validate проверяет согласованность правил.
func (p Policy) Validate() error {
	switch {
	case p.ConfirmationWindow <= 0:
		return fmt.Errorf("confirmation_window must be positive")
	case p.BidDecrement <= 0 || math.IsNaN(p.BidDecrement) || math.IsInf(p.BidDecrement, 0):
		return fmt.Errorf("bid_decrement must be positive")
	case p.ResourceSubmissionDays <= 0 || p.CounterArgumentDays <= 0:
		return fmt.Errorf("resource deadlines must be positive")
	case p.TieBreak != Earliest && p.TieBreak != Latest:
		return fmt.Errorf("unknown tie_break %q", p.TieBreak)
	case p.SettlementRetries < 1:
		return fmt.Errorf("settlement_retries must be at least 1")
	}
	return nil
}

// Window возвращает окно подтверждения ставки.
func (p Policy) Window() time.Duration {
	return time.Duration(p.ConfirmationWindow)
}

// Backoff возвращает паузу между попытками подтверждения.
func (p Policy) Backoff() time.Duration {
	return time.Duration(p.SettlementBackoff)
}

// SubmissionDeadline - срок подачи оснований жалобы после заявления о намерении.
// Считается в календарных днях; рабочие дни не учитываются.
func (p Policy) SubmissionDeadline(from time.Time) time.Time {
	return from.AddDate(0, 0, p.ResourceSubmissionDays)
}

// CounterArgumentDeadline - срок подачи контраргументов после подачи жалобы.
// Считается в календарных днях.
func (p Policy) CounterArgumentDeadline(from time.Time) time.Time {
	return from.AddDate(0, 0, p.CounterArgumentDays)
}

// PrefersEarlier сообщает, побеждает ли при равенстве более ранняя ставка.
func (p Policy) PrefersEarlier() bool {
	return p.TieBreak != Latest
}
