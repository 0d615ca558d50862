package signals

import (
	"fmt"
	"time"
)

// #region kind

// Kind names a signal variant. The set is closed.
type Kind string

const (
	KindFinancial         Kind = "financial"
	KindActivity          Kind = "activity"
	KindSleep             Kind = "sleep"
	KindFocus             Kind = "focus"
	KindNotificationBurst Kind = "notification_burst"
	KindScreenUsage       Kind = "screen_usage"
)

// Kinds returns every variant kind. Scoring and cadence tables are checked
// against this list in tests.
func Kinds() []Kind {
	return []Kind{
		KindFinancial,
		KindActivity,
		KindSleep,
		KindFocus,
		KindNotificationBurst,
		KindScreenUsage,
	}
}

// #endregion kind

// #region signal

// Signal is a structured, timestamped observation handed to the engine.
// The interface is sealed: only the variants in this package implement it.
type Signal interface {
	Kind() Kind
	Timestamp() time.Time
	sealed()
}

// New returns a zero-payload variant of the given kind stamped at at.
func New(kind Kind, at time.Time) (Signal, error) {
	switch kind {
	case KindFinancial:
		return Financial{At: at}, nil
	case KindActivity:
		return Activity{At: at}, nil
	case KindSleep:
		return Sleep{At: at}, nil
	case KindFocus:
		return Focus{At: at}, nil
	case KindNotificationBurst:
		return NotificationBurst{At: at}, nil
	case KindScreenUsage:
		return ScreenUsage{At: at}, nil
	}
	return nil, fmt.Errorf("signals: unknown kind %q", kind)
}

// #endregion signal

// #region financial

// FinancialType distinguishes money movements.
type FinancialType string

const (
	Spend  FinancialType = "spend"
	Save   FinancialType = "save"
	Invest FinancialType = "invest"
)

// Financial is a spend, save or invest event of a given amount.
type Financial struct {
	At     time.Time
	Type   FinancialType
	Amount float64
}

func (Financial) Kind() Kind             { return KindFinancial }
func (s Financial) Timestamp() time.Time { return s.At }
func (Financial) sealed()                {}

// #endregion financial

// #region activity

// Activity is a step count over a duration, optionally a recovery session.
type Activity struct {
	At         time.Time
	Steps      int
	Duration   time.Duration
	IsRecovery bool
}

func (Activity) Kind() Kind             { return KindActivity }
func (s Activity) Timestamp() time.Time { return s.At }
func (Activity) sealed()                {}

// #endregion activity

// #region sleep

// Sleep is one sleep session. Quality is nominally in [0,1].
type Sleep struct {
	At            time.Time
	Duration      time.Duration
	Quality       float64
	Interruptions int
}

func (Sleep) Kind() Kind             { return KindSleep }
func (s Sleep) Timestamp() time.Time { return s.At }
func (Sleep) sealed()                {}

// #endregion sleep

// #region focus

// Focus is one focus session.
type Focus struct {
	At            time.Time
	Duration      time.Duration
	Interruptions int
	UserInitiated bool
}

func (Focus) Kind() Kind             { return KindFocus }
func (s Focus) Timestamp() time.Time { return s.At }
func (Focus) sealed()                {}

// #endregion focus

// #region notification-burst

// Category classifies a notification burst by the app that produced it.
type Category string

const (
	CategoryFinance       Category = "finance"
	CategoryFitness       Category = "fitness"
	CategoryFocus         Category = "focus"
	CategorySocial        Category = "social"
	CategoryEntertainment Category = "entertainment"
	CategorySystem        Category = "system"
)

// Categories returns every notification category.
func Categories() []Category {
	return []Category{
		CategoryFinance,
		CategoryFitness,
		CategoryFocus,
		CategorySocial,
		CategoryEntertainment,
		CategorySystem,
	}
}

// NotificationBurst is a cluster of notifications from one category.
type NotificationBurst struct {
	At         time.Time
	Category   Category
	Count      int
	QuietHours bool
}

func (NotificationBurst) Kind() Kind             { return KindNotificationBurst }
func (s NotificationBurst) Timestamp() time.Time { return s.At }
func (NotificationBurst) sealed()                {}

// #endregion notification-burst

// #region screen-usage

// ScreenUsage is a screen-on interval.
type ScreenUsage struct {
	At        time.Time
	Duration  time.Duration
	LateNight bool
}

func (ScreenUsage) Kind() Kind             { return KindScreenUsage }
func (s ScreenUsage) Timestamp() time.Time { return s.At }
func (ScreenUsage) sealed()                {}

// #endregion screen-usage
