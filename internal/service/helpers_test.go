package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/database"
	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/events"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

type serviceFixture struct {
	db          *gorm.DB
	assessments repository.AssessmentRepository
	submissions repository.SubmissionRepository
	roster      repository.RosterRepository
	activity    ActivityService
	publisher   *recordingPublisher
	clock       *storedAttemptClock
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	return serviceFixture{
		db:          db,
		assessments: repository.NewAssessmentRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		roster:      repository.NewRosterRepository(db),
		activity:    NewActivityService(repository.NewActivityLogRepository(db), testValidator(), testLogger()),
		publisher:   &recordingPublisher{},
		clock:       NewStoredAttemptClock(repository.NewAttemptRepository(db)).(*storedAttemptClock),
	}
}

func (f serviceFixture) assessmentService() AssessmentService {
	return NewAssessmentService(f.assessments, f.roster, f.clock, f.activity, f.publisher, testValidator(), testLogger())
}

func (f serviceFixture) submissionService(config SubmissionConfig) *submissionService {
	return NewSubmissionService(f.assessments, f.submissions, f.roster, f.clock, f.activity, f.publisher, testValidator(), config, testLogger()).(*submissionService)
}

func (f serviceFixture) enroll(t *testing.T, batchID uint, studentIDs ...uint) {
	t.Helper()
	for _, id := range studentIDs {
		require.NoError(t, f.roster.AddMember(context.Background(), batchID, id))
	}
}

func (f serviceFixture) publish(t *testing.T, edit func(req *dto.AssessmentCreateRequest)) dto.AssessmentResponse {
	t.Helper()
	req := quizRequest()
	if edit != nil {
		edit(&req)
	}
	created, err := f.assessmentService().Create(context.Background(), Actor{ID: 1, Role: "teacher"}, req)
	require.NoError(t, err)
	return created
}

// quizRequest describes a 20 mark quiz in batch 2: two objective questions
// worth 15 and one short answer worth 5.
func quizRequest() dto.AssessmentCreateRequest {
	return dto.AssessmentCreateRequest{
		Title:               "Go basics",
		CourseID:            1,
		BatchID:             2,
		PassingScorePercent: 50,
		Questions: []dto.QuestionRequest{
			{ID: "q-mc", Type: "multiple_choice", Text: "Which keyword declares a constant?", Points: 10, Options: []string{"var", "const", "let"}, CorrectOptionIndex: ptrInt(1)},
			{ID: "q-tf", Type: "true_false", Text: "Go has generics.", Points: 5, CorrectOptionIndex: ptrInt(0)},
			{ID: "q-sa", Type: "short_answer", Text: "Explain goroutines.", Points: 5, ExpectedAnswer: ptrString("lightweight threads")},
		},
	}
}

func ptrUint(v uint) *uint {
	return &v
}

func ptrInt(v int) *int {
	return &v
}

func ptrString(v string) *string {
	return &v
}

func ptrFloat(v float64) *float64 {
	return &v
}
