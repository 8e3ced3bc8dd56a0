package models

// ReviewConfig describes the quiz of one review-week day. It is derived, never stored.
type ReviewConfig struct {
	TargetWeeks      []int  `json:"targetWeeks"`
	Title            string `json:"title"`
	QuestionCount    int    `json:"questionCount"`
	TimeLimitSeconds int    `json:"timeLimitSeconds,omitempty"` // 0 means untimed
	IsFinalExam      bool   `json:"isFinalExam"`
}

// Timed reports whether the session runs against a countdown
func (c ReviewConfig) Timed() bool {
	return c.TimeLimitSeconds > 0
}

// Includes reports whether week is one of the target weeks
func (c ReviewConfig) Includes(week int) bool {
	for _, w := range c.TargetWeeks {
		if w == week {
			return true
		}
	}
	return false
}
