package services

import "testing"

func TestAllowInitialCreation(t *testing.T) {
	cases := []struct {
		name    string
		history []AttemptGrade
		want    bool
	}{
		{
			name:    "no_attempts",
			history: nil,
			want:    false,
		},
		{
			name:    "first_attempt_strong",
			history: []AttemptGrade{{Number: 1, GradePC: 85}},
			want:    true,
		},
		{
			name:    "first_attempt_exactly_at_bar",
			history: []AttemptGrade{{Number: 1, GradePC: 70}},
			want:    false,
		},
		{
			name:    "first_attempt_weak",
			history: []AttemptGrade{{Number: 1, GradePC: 50}},
			want:    false,
		},
		{
			name: "second_attempt_lower_bar",
			history: []AttemptGrade{
				{Number: 1, GradePC: 50},
				{Number: 2, GradePC: 35},
			},
			want: true,
		},
		{
			name: "second_attempt_below_lower_bar",
			history: []AttemptGrade{
				{Number: 1, GradePC: 50},
				{Number: 2, GradePC: 20},
			},
			want: false,
		},
		{
			name: "third_attempt_lower_bar",
			history: []AttemptGrade{
				{Number: 1, GradePC: 10},
				{Number: 2, GradePC: 20},
				{Number: 3, GradePC: 40},
			},
			want: true,
		},
		{
			name: "latest_attempt_wins_regardless_of_order",
			history: []AttemptGrade{
				{Number: 3, GradePC: 40},
				{Number: 1, GradePC: 10},
				{Number: 2, GradePC: 20},
			},
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AllowInitialCreation(tc.history)
			if got != tc.want {
				t.Fatalf("AllowInitialCreation(%v)=%v, want %v", tc.history, got, tc.want)
			}
		})
	}
}
