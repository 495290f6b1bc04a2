package validation

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"taskify/internal/errs"
	"taskify/internal/models"
	"taskify/internal/store"
)

func TestIsValidEmail(t *testing.T) {
	cases := []struct {
		email string
		valid bool
	}{
		{"alice@example.com", true},
		{"a.b+c@sub.domain.org", true},
		{"alice@example", false},
		{"alice@@example.com", false},
		{"@example.com", false},
		{"alice@", false},
		{"al ice@example.com", false},
		{"alice@exa mple.com", false},
		{"alice.example.com", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := IsValidEmail(tc.email); got != tc.valid {
			t.Errorf("IsValidEmail(%q) = %v, want %v", tc.email, got, tc.valid)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
	}{
		{"2025-01-01", true},
		{"2025-01-01T10:30:00Z", true},
		{"2025-01-01T10:30:00.123Z", true},
		{"2025-01-01 10:30:00", true},
		{"01/02/2025", true},
		{"1735689600", true},
		{"1735689600000", true},
		{"not a date", false},
		{"2025-13-45", false},
		{"", false},
	}

	for _, tc := range cases {
		_, ok := ParseDate(tc.in)
		if ok != tc.valid {
			t.Errorf("ParseDate(%q) ok = %v, want %v", tc.in, ok, tc.valid)
		}
	}
}

func TestParseDate_EpochValue(t *testing.T) {
	got, ok := ParseDate("1735689600")
	if !ok {
		t.Fatal("expected epoch seconds to parse")
	}
	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseDate epoch = %v, want %v", got, want)
	}
}

func TestIsWellFormedID(t *testing.T) {
	if !IsWellFormedID(uuid.Must(uuid.NewV4()).String()) {
		t.Error("expected generated uuid to be well-formed")
	}
	if IsWellFormedID("nonsense") {
		t.Error("expected 'nonsense' to be rejected")
	}
	if IsWellFormedID("") {
		t.Error("expected empty string to be rejected")
	}
}

type ValidatorSuite struct {
	suite.Suite
	store     *store.MemoryStore
	validator *Validator
	ctx       context.Context

	alice  models.User
	carol1 models.User
	carol2 models.User
	open   models.Task
	done   models.Task
}

func TestValidatorSuite(t *testing.T) {
	suite.Run(t, new(ValidatorSuite))
}

func (s *ValidatorSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewMemory()
	s.validator = New(s.store)

	s.alice = models.User{
		ID:    uuid.Must(uuid.NewV4()).String(),
		Name:  "Alice",
		Email: "alice@example.com",
	}
	s.carol1 = models.User{
		ID:    uuid.Must(uuid.NewV4()).String(),
		Name:  "Carol",
		Email: "carol1@example.com",
	}
	s.carol2 = models.User{
		ID:    uuid.Must(uuid.NewV4()).String(),
		Name:  "Carol",
		Email: "carol2@example.com",
	}

	s.open = models.Task{
		ID:       uuid.Must(uuid.NewV4()).String(),
		Name:     "write report",
		Deadline: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	s.done = models.Task{
		ID:        uuid.Must(uuid.NewV4()).String(),
		Name:      "ship release",
		Deadline:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Completed: true,
	}

	require.NoError(s.T(), s.store.InsertUser(s.ctx, &s.alice))
	require.NoError(s.T(), s.store.InsertUser(s.ctx, &s.carol1))
	require.NoError(s.T(), s.store.InsertUser(s.ctx, &s.carol2))
	require.NoError(s.T(), s.store.InsertTask(s.ctx, &s.open))
	require.NoError(s.T(), s.store.InsertTask(s.ctx, &s.done))
}

func (s *ValidatorSuite) TestResolveAssignee_NoInput() {
	u, err := s.validator.ResolveAssignee(s.ctx, "", "")
	assert.NoError(s.T(), err)
	assert.Nil(s.T(), u)
}

func (s *ValidatorSuite) TestResolveAssignee_ByID() {
	u, err := s.validator.ResolveAssignee(s.ctx, s.alice.ID, "")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Alice", u.Name)
}

func (s *ValidatorSuite) TestResolveAssignee_MalformedID() {
	_, err := s.validator.ResolveAssignee(s.ctx, "not-a-uuid", "")
	require.Error(s.T(), err)
	assert.Equal(s.T(), errs.CodeInvalidIdentifier, errs.CodeOf(err))
	assert.True(s.T(), errs.IsKind(err, errs.RelationshipInvalid))
}

func (s *ValidatorSuite) TestResolveAssignee_UnknownID() {
	_, err := s.validator.ResolveAssignee(s.ctx, uuid.Must(uuid.NewV4()).String(), "")
	require.Error(s.T(), err)
	assert.Equal(s.T(), errs.CodeUnknownUser, errs.CodeOf(err))
}

func (s *ValidatorSuite) TestResolveAssignee_NameMismatch() {
	_, err := s.validator.ResolveAssignee(s.ctx, s.alice.ID, "Zelda")
	require.Error(s.T(), err)
	assert.Equal(s.T(), errs.CodeNameMismatch, errs.CodeOf(err))
}

func (s *ValidatorSuite) TestResolveAssignee_MatchingName() {
	u, err := s.validator.ResolveAssignee(s.ctx, s.alice.ID, "Alice")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), s.alice.ID, u.ID)
}

func (s *ValidatorSuite) TestResolveAssignee_ByUniqueName() {
	u, err := s.validator.ResolveAssignee(s.ctx, "", "Alice")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), s.alice.ID, u.ID)
}

func (s *ValidatorSuite) TestResolveAssignee_UnknownName() {
	_, err := s.validator.ResolveAssignee(s.ctx, "", "Bob")
	require.Error(s.T(), err)
	assert.Equal(s.T(), errs.CodeUnknownUser, errs.CodeOf(err))
}

func (s *ValidatorSuite) TestResolveAssignee_AmbiguousName() {
	_, err := s.validator.ResolveAssignee(s.ctx, "", "Carol")
	require.Error(s.T(), err)
	assert.Equal(s.T(), errs.CodeAmbiguousName, errs.CodeOf(err))
}

func (s *ValidatorSuite) TestValidatePendingSet_Empty() {
	tasks, err := s.validator.ValidatePendingSet(s.ctx, nil)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), tasks)
}

func (s *ValidatorSuite) TestValidatePendingSet_ResolvesTasks() {
	tasks, err := s.validator.ValidatePendingSet(s.ctx, []string{s.open.ID})
	require.NoError(s.T(), err)
	require.Len(s.T(), tasks, 1)
	assert.Equal(s.T(), s.open.ID, tasks[0].ID)
	assert.Equal(s.T(), "write report", tasks[0].Name)
}

func (s *ValidatorSuite) TestValidatePendingSet_ListsAllMalformed() {
	_, err := s.validator.ValidatePendingSet(s.ctx, []string{"junk", s.open.ID, "more junk"})
	require.Error(s.T(), err)
	assert.Equal(s.T(), errs.CodeMalformedIdentifier, errs.CodeOf(err))

	var e *errs.Error
	require.ErrorAs(s.T(), err, &e)
	assert.ElementsMatch(s.T(), []string{"junk", "more junk"}, e.IDs)
}

func (s *ValidatorSuite) TestValidatePendingSet_ListsAllMissing() {
	ghost1 := uuid.Must(uuid.NewV4()).String()
	ghost2 := uuid.Must(uuid.NewV4()).String()

	_, err := s.validator.ValidatePendingSet(s.ctx, []string{ghost1, s.open.ID, ghost2})
	require.Error(s.T(), err)
	assert.Equal(s.T(), errs.CodeTaskNotFound, errs.CodeOf(err))

	var e *errs.Error
	require.ErrorAs(s.T(), err, &e)
	assert.ElementsMatch(s.T(), []string{ghost1, ghost2}, e.IDs)
}

func (s *ValidatorSuite) TestValidatePendingSet_RejectsCompleted() {
	_, err := s.validator.ValidatePendingSet(s.ctx, []string{s.open.ID, s.done.ID})
	require.Error(s.T(), err)
	assert.Equal(s.T(), errs.CodeTaskCompleted, errs.CodeOf(err))

	var e *errs.Error
	require.ErrorAs(s.T(), err, &e)
	assert.Equal(s.T(), []string{s.done.ID}, e.IDs)
}

func (s *ValidatorSuite) TestValidatePendingSet_DeduplicatesInput() {
	tasks, err := s.validator.ValidatePendingSet(s.ctx, []string{s.open.ID, s.open.ID})
	require.NoError(s.T(), err)
	assert.Len(s.T(), tasks, 1)
}

func BenchmarkIsValidEmail(b *testing.B) {
	for i := 0; i < b.N; i++ {
		IsValidEmail("alice@example.com")
	}
}
