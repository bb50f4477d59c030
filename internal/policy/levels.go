package policy

import "fmt"

// Level is the outreach aggressiveness dial. Levels form a total
// order: every safeguard threshold strictly relaxes as the level
// rises. That monotonicity is an invariant the safeguard evaluator
// assumes; ValidateMonotonic enforces it on any override table.
type Level int

const (
	MinLevel Level = 1
	MaxLevel Level = 6
)

// LevelName returns the display name for a level.
func LevelName(l Level) string {
	switch l {
	case 1:
		return "gandhi"
	case 2:
		return "cautious"
	case 3:
		return "balanced"
	case 4:
		return "assertive"
	case 5:
		return "aggressive"
	case 6:
		return "genghis"
	default:
		return fmt.Sprintf("unknown(%d)", int(l))
	}
}

// Valid reports whether the level is on the defined scale.
func (l Level) Valid() bool {
	return l >= MinLevel && l <= MaxLevel
}

// Strictness grades how hard the approval gateway leans on human
// review for actions that would otherwise auto-send.
type Strictness string

const (
	StrictnessMaximum  Strictness = "maximum"
	StrictnessHigh     Strictness = "high"
	StrictnessStandard Strictness = "standard"
	StrictnessReduced  Strictness = "reduced"
	StrictnessMinimal  Strictness = "minimal"
	StrictnessOverride Strictness = "override"
)

// strictnessRank orders strictness from tightest to loosest.
var strictnessRank = map[Strictness]int{
	StrictnessMaximum:  0,
	StrictnessHigh:     1,
	StrictnessStandard: 2,
	StrictnessReduced:  3,
	StrictnessMinimal:  4,
	StrictnessOverride: 5,
}

// RequiresReview reports whether this strictness forces human review
// even for actions that are otherwise safe to auto-execute.
func (s Strictness) RequiresReview() bool {
	return s == StrictnessMaximum || s == StrictnessHigh
}

// Parameters is the safeguard threshold bundle derived from a level.
type Parameters struct {
	DailyOutreachCap              int        `yaml:"daily_outreach_cap" json:"daily_outreach_cap"`
	MinDaysBetweenContactMessages int        `yaml:"min_days_between_contact_messages" json:"min_days_between_contact_messages"`
	MaxMessagesPerContactPerWeek  int        `yaml:"max_messages_per_contact_per_week" json:"max_messages_per_contact_per_week"`
	MaxMessagesPerCompanyPerWeek  int        `yaml:"max_messages_per_company_per_week" json:"max_messages_per_company_per_week"`
	EngagementDecayThreshold      float64    `yaml:"engagement_decay_threshold" json:"engagement_decay_threshold"`
	OvercommunicationDetection    bool       `yaml:"overcommunication_detection" json:"overcommunication_detection"`
	Strictness                    Strictness `yaml:"strictness" json:"strictness"`
}

// LevelTable maps each level (index level-1) to its parameters.
type LevelTable [MaxLevel]Parameters

// ForLevel returns the parameters for a level.
func (t LevelTable) ForLevel(l Level) (Parameters, error) {
	if !l.Valid() {
		return Parameters{}, fmt.Errorf("%w: level %d outside [%d, %d]", ErrInvalidMode, int(l), MinLevel, MaxLevel)
	}
	return t[l-1], nil
}

// DefaultLevels returns the built-in level table.
func DefaultLevels() LevelTable {
	return LevelTable{
		{ // 1 gandhi
			DailyOutreachCap:              2,
			MinDaysBetweenContactMessages: 7,
			MaxMessagesPerContactPerWeek:  1,
			MaxMessagesPerCompanyPerWeek:  2,
			EngagementDecayThreshold:      0.85,
			OvercommunicationDetection:    true,
			Strictness:                    StrictnessMaximum,
		},
		{ // 2 cautious
			DailyOutreachCap:              5,
			MinDaysBetweenContactMessages: 5,
			MaxMessagesPerContactPerWeek:  1,
			MaxMessagesPerCompanyPerWeek:  3,
			EngagementDecayThreshold:      0.75,
			OvercommunicationDetection:    true,
			Strictness:                    StrictnessHigh,
		},
		{ // 3 balanced
			DailyOutreachCap:              10,
			MinDaysBetweenContactMessages: 3,
			MaxMessagesPerContactPerWeek:  1,
			MaxMessagesPerCompanyPerWeek:  5,
			EngagementDecayThreshold:      0.6,
			OvercommunicationDetection:    true,
			Strictness:                    StrictnessStandard,
		},
		{ // 4 assertive
			DailyOutreachCap:              20,
			MinDaysBetweenContactMessages: 2,
			MaxMessagesPerContactPerWeek:  2,
			MaxMessagesPerCompanyPerWeek:  8,
			EngagementDecayThreshold:      0.45,
			OvercommunicationDetection:    true,
			Strictness:                    StrictnessReduced,
		},
		{ // 5 aggressive
			DailyOutreachCap:              35,
			MinDaysBetweenContactMessages: 1,
			MaxMessagesPerContactPerWeek:  3,
			MaxMessagesPerCompanyPerWeek:  12,
			EngagementDecayThreshold:      0.3,
			OvercommunicationDetection:    true,
			Strictness:                    StrictnessMinimal,
		},
		{ // 6 genghis
			DailyOutreachCap:              50,
			MinDaysBetweenContactMessages: 0,
			MaxMessagesPerContactPerWeek:  5,
			MaxMessagesPerCompanyPerWeek:  20,
			EngagementDecayThreshold:      0.15,
			OvercommunicationDetection:    false,
			Strictness:                    StrictnessOverride,
		},
	}
}

// ValidateMonotonic checks that every threshold relaxes (or holds)
// as the level rises. Override tables that break this are rejected
// at load time.
func ValidateMonotonic(t LevelTable) error {
	for i := 1; i < len(t); i++ {
		lo, hi := t[i-1], t[i]
		level := Level(i + 1)
		if hi.DailyOutreachCap < lo.DailyOutreachCap {
			return fmt.Errorf("level %d: daily_outreach_cap %d below level %d's %d", level, hi.DailyOutreachCap, level-1, lo.DailyOutreachCap)
		}
		if hi.MinDaysBetweenContactMessages > lo.MinDaysBetweenContactMessages {
			return fmt.Errorf("level %d: min_days_between_contact_messages %d above level %d's %d", level, hi.MinDaysBetweenContactMessages, level-1, lo.MinDaysBetweenContactMessages)
		}
		if hi.MaxMessagesPerContactPerWeek < lo.MaxMessagesPerContactPerWeek {
			return fmt.Errorf("level %d: max_messages_per_contact_per_week %d below level %d's %d", level, hi.MaxMessagesPerContactPerWeek, level-1, lo.MaxMessagesPerContactPerWeek)
		}
		if hi.MaxMessagesPerCompanyPerWeek < lo.MaxMessagesPerCompanyPerWeek {
			return fmt.Errorf("level %d: max_messages_per_company_per_week %d below level %d's %d", level, hi.MaxMessagesPerCompanyPerWeek, level-1, lo.MaxMessagesPerCompanyPerWeek)
		}
		if hi.EngagementDecayThreshold > lo.EngagementDecayThreshold {
			return fmt.Errorf("level %d: engagement_decay_threshold %.2f above level %d's %.2f", level, hi.EngagementDecayThreshold, level-1, lo.EngagementDecayThreshold)
		}
		if strictnessRank[hi.Strictness] < strictnessRank[lo.Strictness] {
			return fmt.Errorf("level %d: strictness %q tighter than level %d's %q", level, hi.Strictness, level-1, lo.Strictness)
		}
	}
	return nil
}
