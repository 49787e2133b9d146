package assessment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleQuestions() []Question {
	return []Question{
		MultipleChoice{Prompt: Prompt{ID: "q1", Text: "Pick B", Points: 10}, Options: []string{"A", "B"}, CorrectOptionIndex: 1},
		ShortAnswer{Prompt: Prompt{ID: "q2", Text: "Explain", Points: 5}},
	}
}

func TestGradeAwardsObjectiveAndFlagsSubjective(t *testing.T) {
	outcome := Grade(sampleQuestions(), Responses{"q1": IndexAnswer(1), "q2": TextAnswer("foo")})

	require.Equal(t, 10.0, outcome.MarksObtained)
	require.True(t, outcome.RequiresManualReview)
	require.Len(t, outcome.Results, 2)
	require.True(t, *outcome.Results[0].Correct)
	require.True(t, outcome.Results[1].PendingManualReview)
	require.Zero(t, outcome.Results[1].Awarded)
}

func TestGradeIsDeterministic(t *testing.T) {
	questions := sampleQuestions()
	responses := Responses{"q1": IndexAnswer(0), "q2": TextAnswer("bar")}

	first := Grade(questions, responses)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Grade(questions, responses))
	}
}

func TestGradeRequiresExactIntegerMatch(t *testing.T) {
	var responses Responses
	require.NoError(t, json.Unmarshal([]byte(`{"q1":"1"}`), &responses))
	require.Zero(t, Grade(sampleQuestions(), responses).MarksObtained)

	require.NoError(t, json.Unmarshal([]byte(`{"q1":1.0}`), &responses))
	require.Zero(t, Grade(sampleQuestions(), responses).MarksObtained)

	require.NoError(t, json.Unmarshal([]byte(`{"q1":true}`), &responses))
	require.Zero(t, Grade(sampleQuestions(), responses).MarksObtained)

	require.NoError(t, json.Unmarshal([]byte(`{"q1":1}`), &responses))
	require.Equal(t, 10.0, Grade(sampleQuestions(), responses).MarksObtained)
}

func TestGradeTreatsMissingAndNullAsUnanswered(t *testing.T) {
	var responses Responses
	require.NoError(t, json.Unmarshal([]byte(`{"q1":null}`), &responses))

	outcome := Grade(sampleQuestions(), responses)
	require.Zero(t, outcome.MarksObtained)
	require.False(t, outcome.Results[0].Answered)
	require.False(t, outcome.Results[1].Answered)
	require.False(t, *outcome.Results[0].Correct)
}

func TestTrueFalseGrading(t *testing.T) {
	questions := []Question{TrueFalse{Prompt: Prompt{ID: "tf", Text: "Sky is blue", Points: 2}, CorrectOptionIndex: 0}}

	require.Equal(t, 2.0, Grade(questions, Responses{"tf": IndexAnswer(0)}).MarksObtained)
	require.Zero(t, Grade(questions, Responses{"tf": IndexAnswer(1)}).MarksObtained)
}

func TestAnswerRoundTripKeepsShape(t *testing.T) {
	payload := []byte(`{"a":2,"b":"text","c":1.5}`)
	var responses Responses
	require.NoError(t, json.Unmarshal(payload, &responses))

	idx, ok := responses["a"].Index()
	require.True(t, ok)
	require.Equal(t, 2, idx)

	text, ok := responses["b"].Text()
	require.True(t, ok)
	require.Equal(t, "text", text)

	_, ok = responses["c"].Index()
	require.False(t, ok)
	require.True(t, responses["c"].Present())

	encoded, err := json.Marshal(responses)
	require.NoError(t, err)
	require.JSONEq(t, string(payload), string(encoded))
}

func TestReconcileReplacesContributionIdempotently(t *testing.T) {
	outcome := Grade(sampleQuestions(), Responses{"q1": IndexAnswer(1), "q2": TextAnswer("foo")})

	marks, pending := Reconcile(outcome.Results, nil)
	require.Equal(t, 10.0, marks)
	require.Equal(t, 1, pending)

	overrides := map[string]float64{"q2": 5}
	marks, pending = Reconcile(outcome.Results, overrides)
	require.Equal(t, 15.0, marks)
	require.Zero(t, pending)

	overrides["q2"] = 5
	again, _ := Reconcile(outcome.Results, overrides)
	require.Equal(t, marks, again)

	overrides["q2"] = 2
	lowered, _ := Reconcile(outcome.Results, overrides)
	require.Equal(t, 12.0, lowered)
}

func TestReconcileIgnoresOverridesOnObjectiveQuestions(t *testing.T) {
	outcome := Grade(sampleQuestions(), Responses{"q1": IndexAnswer(0)})

	marks, _ := Reconcile(outcome.Results, map[string]float64{"q1": 10})
	require.Zero(t, marks)
}

func TestCheckOverride(t *testing.T) {
	questions := sampleQuestions()

	require.NoError(t, CheckOverride(questions[1], 0))
	require.NoError(t, CheckOverride(questions[1], 5))
	require.ErrorIs(t, CheckOverride(questions[1], 5.5), ErrOutOfRange)
	require.ErrorIs(t, CheckOverride(questions[1], -1), ErrOutOfRange)
	require.ErrorIs(t, CheckOverride(questions[0], 3), ErrOutOfRange)
}

func TestPercentAndPassedGuardZeroTotal(t *testing.T) {
	require.Zero(t, Percent(10, 0))
	require.Equal(t, 50.0, Percent(5, 10))
	require.True(t, Passed(15, 15, 60))
	require.False(t, Passed(10, 15, 70))
	require.True(t, Passed(10, 15, 66))
	require.False(t, Passed(5, 0, 1))
}
