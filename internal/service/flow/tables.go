package flow

// FieldSpec binds one slot name to its extraction matcher. Fields are
// matched in declaration order while pending.
type FieldSpec struct {
	Name  string
	Match Matcher
}

// Intent selects a primary subject from an utterance and seeds the
// ordered set of fields to collect for it.
type Intent struct {
	Name     string
	Keywords []string
	Fields   []FieldSpec
}

// Config is the declarative table driving the state machine: intents,
// the reset and reject lexicons, and the canned close text. Lexicon
// matching is case-insensitive substring.
type Config struct {
	Intents      []Intent
	ResetWords   []string
	RejectWords  []string
	CloseMessage string
}

// DefaultConfig is the VR lounge booking flow.
func DefaultConfig() Config {
	return Config{
		Intents: []Intent{
			{
				Name:     "vr_session",
				Keywords: []string{"vr", "gaming", "game"},
				Fields: []FieldSpec{
					{Name: "group_size", Match: MatchNumber},
					{Name: "date", Match: MatchDate},
					{Name: "time", Match: MatchTime},
				},
			},
			{
				Name:     "birthday_party",
				Keywords: []string{"birthday", "party"},
				Fields: []FieldSpec{
					{Name: "group_size", Match: MatchNumber},
					{Name: "date", Match: MatchDate},
				},
			},
		},
		ResetWords:   []string{"reset", "restart", "start over", "naya booking"},
		RejectWords:  []string{"nahi", "no thanks", "not interested", "stop", "cancel", "bye"},
		CloseMessage: "No problem! Message us anytime if you change your mind. Have a great day!",
	}
}
