// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package onboarding turns questionnaire answers into the trait scores
// stored on a newly registered account.
package onboarding

import (
	"errors"
	"math"
)

// ErrInsufficientAnswers is returned when scoring is attempted on an empty
// answer set.
var ErrInsufficientAnswers = errors.New("insufficient answers")

// BeliefSensitivity is the categorical tag attached to the terminal question.
type BeliefSensitivity string

const (
	BeliefLow      BeliefSensitivity = "low"
	BeliefModerate BeliefSensitivity = "moderate"
	BeliefHigh     BeliefSensitivity = "high"
)

// Answer is a single questionnaire response. Score is expected in [0, 1].
// Belief is only set on the terminal question.
type Answer struct {
	Score  float64
	Belief BeliefSensitivity
}

// Result holds the computed traits for the registration payload.
type Result struct {
	ContradictionTolerance float64
	BeliefSensitivity      BeliefSensitivity
}

// Score computes the contradiction tolerance (arithmetic mean of all answer
// scores, rounded to 2 decimals) and picks up the belief sensitivity tag from
// the last answer that carries one.
func Score(answers []Answer) (Result, error) {
	if len(answers) == 0 {
		return Result{}, ErrInsufficientAnswers
	}

	var sum float64
	var belief BeliefSensitivity
	for _, a := range answers {
		sum += a.Score
		if a.Belief != "" {
			belief = a.Belief
		}
	}

	mean := sum / float64(len(answers))

	return Result{
		ContradictionTolerance: math.Round(mean*100) / 100,
		BeliefSensitivity:      belief,
	}, nil
}
