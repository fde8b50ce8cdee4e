package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studyloop/reviewquiz-backend/internal/lms"
	"github.com/studyloop/reviewquiz-backend/internal/locks"
	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("production")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

// fakeLMS is an in-memory stand-in for the host LMS. Ops can be made to
// fail selectively via failOps, keyed either "op" or "op:id".
type fakeLMS struct {
	mu sync.Mutex

	quizInfos    map[int64]*lms.QuizInfo
	attempts     map[int64][]lms.Attempt
	answers      map[int64][]lms.AttemptAnswer
	openAttempts map[string]bool
	userNames    map[int64]string

	// questions holds the live structure of provisioned review quizzes.
	questions map[int64][]int64
	orders    map[int64][]int64

	nextID  int64
	failOps map[string]error

	deletedAttempts []string
	enrolled        []string
}

func newFakeLMS() *fakeLMS {
	return &fakeLMS{
		quizInfos:    map[int64]*lms.QuizInfo{},
		attempts:     map[int64][]lms.Attempt{},
		answers:      map[int64][]lms.AttemptAnswer{},
		openAttempts: map[string]bool{},
		userNames:    map[int64]string{},
		questions:    map[int64][]int64{},
		orders:       map[int64][]int64{},
		nextID:       9000,
		failOps:      map[string]error{},
	}
}

func (f *fakeLMS) failing(op string, id int64) error {
	if err, ok := f.failOps[fmt.Sprintf("%s:%d", op, id)]; ok {
		return err
	}
	if err, ok := f.failOps[op]; ok {
		return err
	}
	return nil
}

func (f *fakeLMS) QuizInfo(_ context.Context, quizID int64) (*lms.QuizInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("quiz_info", quizID); err != nil {
		return nil, err
	}
	info, ok := f.quizInfos[quizID]
	if !ok {
		return nil, lms.ErrNotFound
	}
	return info, nil
}

func (f *fakeLMS) QuizExists(_ context.Context, quizID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("quiz_exists", quizID); err != nil {
		return err
	}
	if _, ok := f.quizInfos[quizID]; ok {
		return nil
	}
	if _, ok := f.questions[quizID]; ok {
		return nil
	}
	return lms.ErrNotFound
}

func (f *fakeLMS) UserAttempts(_ context.Context, quizID, userID int64) ([]lms.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []lms.Attempt
	for _, a := range f.attempts[quizID] {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeLMS) AttemptAnswers(_ context.Context, attemptID int64) ([]lms.AttemptAnswer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	answers, ok := f.answers[attemptID]
	if !ok {
		return nil, lms.ErrNotFound
	}
	return answers, nil
}

func (f *fakeLMS) HasOpenAttempt(_ context.Context, quizID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openAttempts[fmt.Sprintf("%d:%d", quizID, userID)], nil
}

func (f *fakeLMS) UserName(_ context.Context, userID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name, ok := f.userNames[userID]; ok {
		return name, nil
	}
	return fmt.Sprintf("User %d", userID), nil
}

func (f *fakeLMS) EnsureCourse(_ context.Context, fullName, shortName string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("ensure_course", 0); err != nil {
		return 0, err
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeLMS) EnrolUser(_ context.Context, courseID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enrolled = append(f.enrolled, fmt.Sprintf("%d:%d", courseID, userID))
	return nil
}

func (f *fakeLMS) CreateQuiz(_ context.Context, courseID int64, section, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("create_quiz", courseID); err != nil {
		return 0, err
	}
	f.nextID++
	f.questions[f.nextID] = []int64{}
	return f.nextID, nil
}

func (f *fakeLMS) FindQuizByName(_ context.Context, courseID int64, name string) (int64, error) {
	return 0, lms.ErrNotFound
}

func (f *fakeLMS) AddQuestion(_ context.Context, quizID, questionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("add_question", questionID); err != nil {
		return err
	}
	for _, q := range f.questions[quizID] {
		if q == questionID {
			return nil
		}
	}
	f.questions[quizID] = append(f.questions[quizID], questionID)
	return nil
}

func (f *fakeLMS) RemoveQuestion(_ context.Context, quizID, questionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("remove_question", questionID); err != nil {
		return err
	}
	kept := f.questions[quizID][:0]
	for _, q := range f.questions[quizID] {
		if q != questionID {
			kept = append(kept, q)
		}
	}
	f.questions[quizID] = kept
	return nil
}

func (f *fakeLMS) ResequenceSlots(_ context.Context, quizID int64, order []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("resequence", quizID); err != nil {
		return err
	}
	f.orders[quizID] = append([]int64(nil), order...)
	return nil
}

func (f *fakeLMS) RecomputeGrade(_ context.Context, quizID int64) error {
	return nil
}

func (f *fakeLMS) DeleteOpenAttempt(_ context.Context, quizID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("delete_open_attempt", quizID); err != nil {
		return err
	}
	key := fmt.Sprintf("%d:%d", quizID, userID)
	f.openAttempts[key] = false
	f.deletedAttempts = append(f.deletedAttempts, key)
	return nil
}

func (f *fakeLMS) RebuildCourseCache(_ context.Context, courseID int64) error {
	return nil
}

// In-memory repo fakes. They honor the same nil-on-missing contracts as
// the gorm-backed versions.

type fakeFlagRepo struct {
	mu   sync.Mutex
	rows map[string]*types.QuestionFlag
}

func newFakeFlagRepo() *fakeFlagRepo {
	return &fakeFlagRepo{rows: map[string]*types.QuestionFlag{}}
}

func flagKey(userID, questionID int64) string {
	return fmt.Sprintf("%d:%d", userID, questionID)
}

func (r *fakeFlagRepo) Upsert(_ context.Context, _ *gorm.DB, flag *types.QuestionFlag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := flagKey(flag.UserID, flag.QuestionID)
	if existing, ok := r.rows[key]; ok {
		existing.Color = flag.Color
		existing.Source = flag.Source
		return nil
	}
	cp := *flag
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	r.rows[key] = &cp
	return nil
}

func (r *fakeFlagRepo) Delete(_ context.Context, _ *gorm.DB, userID, questionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, flagKey(userID, questionID))
	return nil
}

func (r *fakeFlagRepo) GetByUser(_ context.Context, _ *gorm.DB, userID int64) ([]*types.QuestionFlag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.QuestionFlag
	for _, f := range r.rows {
		if f.UserID == userID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeFlagRepo) GetByUserAndQuestions(_ context.Context, _ *gorm.DB, userID int64, questionIDs []int64) ([]*types.QuestionFlag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[int64]bool{}
	for _, id := range questionIDs {
		want[id] = true
	}
	var out []*types.QuestionFlag
	for _, f := range r.rows {
		if f.UserID == userID && want[f.QuestionID] {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeCourseRepo struct {
	mu   sync.Mutex
	rows map[int64]*types.ReviewCourse
}

func newFakeCourseRepo() *fakeCourseRepo {
	return &fakeCourseRepo{rows: map[int64]*types.ReviewCourse{}}
}

func (r *fakeCourseRepo) Create(_ context.Context, _ *gorm.DB, course *types.ReviewCourse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[course.UserID]; ok {
		return fmt.Errorf("duplicate review course for user %d", course.UserID)
	}
	if course.ID == uuid.Nil {
		course.ID = uuid.New()
	}
	cp := *course
	r.rows[course.UserID] = &cp
	return nil
}

func (r *fakeCourseRepo) GetByUser(_ context.Context, _ *gorm.DB, userID int64) (*types.ReviewCourse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[userID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

type fakeQuizRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.ReviewQuiz
}

func newFakeQuizRepo() *fakeQuizRepo {
	return &fakeQuizRepo{rows: map[uuid.UUID]*types.ReviewQuiz{}}
}

func (r *fakeQuizRepo) Create(_ context.Context, _ *gorm.DB, quiz *types.ReviewQuiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.rows {
		if q.ReviewCourseID == quiz.ReviewCourseID && q.SourceQuizID == quiz.SourceQuizID {
			return fmt.Errorf("duplicate review quiz for source %d", quiz.SourceQuizID)
		}
	}
	if quiz.ID == uuid.Nil {
		quiz.ID = uuid.New()
	}
	cp := *quiz
	r.rows[quiz.ID] = &cp
	return nil
}

func (r *fakeQuizRepo) GetByCourseAndSource(_ context.Context, _ *gorm.DB, reviewCourseID uuid.UUID, sourceQuizID int64) (*types.ReviewQuiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.rows {
		if q.ReviewCourseID == reviewCourseID && q.SourceQuizID == sourceQuizID {
			cp := *q
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeQuizRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.ReviewQuiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.ReviewQuiz
	for _, id := range ids {
		if q, ok := r.rows[id]; ok {
			cp := *q
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeQuizRepo) GetByLMSQuiz(_ context.Context, _ *gorm.DB, lmsQuizID int64) (*types.ReviewQuiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.rows {
		if q.LMSQuizID == lmsQuizID {
			cp := *q
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeQuizRepo) GetByCourse(_ context.Context, _ *gorm.DB, reviewCourseID uuid.UUID) ([]*types.ReviewQuiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.ReviewQuiz
	for _, q := range r.rows {
		if q.ReviewCourseID == reviewCourseID {
			cp := *q
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeQuizRepo) Repoint(_ context.Context, _ *gorm.DB, id uuid.UUID, lmsQuizID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.rows[id]; ok {
		q.LMSQuizID = lmsQuizID
	}
	return nil
}

type fakeAssignRepo struct {
	mu   sync.Mutex
	rows map[string]*types.ReviewAssignment
	seq  int
}

func newFakeAssignRepo() *fakeAssignRepo {
	return &fakeAssignRepo{rows: map[string]*types.ReviewAssignment{}}
}

func assignKey(courseID uuid.UUID, questionID int64) string {
	return fmt.Sprintf("%s:%d", courseID, questionID)
}

func (r *fakeAssignRepo) Create(_ context.Context, _ *gorm.DB, row *types.ReviewAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := assignKey(row.ReviewCourseID, row.QuestionID)
	if _, ok := r.rows[key]; ok {
		return fmt.Errorf("duplicate assignment for question %d", row.QuestionID)
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	r.seq++
	cp := *row
	if cp.Slot == 0 {
		cp.Slot = r.seq
	}
	r.rows[key] = &cp
	return nil
}

func (r *fakeAssignRepo) Delete(_ context.Context, _ *gorm.DB, reviewCourseID uuid.UUID, questionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, assignKey(reviewCourseID, questionID))
	return nil
}

func (r *fakeAssignRepo) GetByQuiz(_ context.Context, _ *gorm.DB, reviewQuizID uuid.UUID) ([]*types.ReviewAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.ReviewAssignment
	for _, a := range r.rows {
		if a.ReviewQuizID == reviewQuizID {
			cp := *a
			out = append(out, &cp)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Slot < out[i].Slot {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (r *fakeAssignRepo) GetByCourseAndQuestions(_ context.Context, _ *gorm.DB, reviewCourseID uuid.UUID, questionIDs []int64) ([]*types.ReviewAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[int64]bool{}
	for _, id := range questionIDs {
		want[id] = true
	}
	var out []*types.ReviewAssignment
	for _, a := range r.rows {
		if a.ReviewCourseID == reviewCourseID && want[a.QuestionID] {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAssignRepo) UpdateSlots(_ context.Context, _ *gorm.DB, reviewQuizID uuid.UUID, slots map[int64]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.ReviewQuizID == reviewQuizID {
			if slot, ok := slots[a.QuestionID]; ok {
				a.Slot = slot
			}
		}
	}
	return nil
}

func (r *fakeAssignRepo) DeleteByQuiz(_ context.Context, _ *gorm.DB, reviewQuizID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, a := range r.rows {
		if a.ReviewQuizID == reviewQuizID {
			delete(r.rows, key)
		}
	}
	return nil
}

// fakeJobService records enqueue calls instead of writing job rows.
type fakeJobService struct {
	mu         sync.Mutex
	reconciles []string
	heals      []int64
	rebuilds   []int64
}

func (s *fakeJobService) Enqueue(_ context.Context, _ *gorm.DB, ownerUserID int64, jobType, entityType, entityID string, payload map[string]any) (*types.JobRun, error) {
	return &types.JobRun{JobType: jobType, EntityType: entityType, EntityID: entityID}, nil
}

func (s *fakeJobService) EnqueueReviewReconcileIfNeeded(_ context.Context, userID, sourceQuizID int64, attemptID *int64, mode ReviewMode, trigger string) (*types.JobRun, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconciles = append(s.reconciles, fmt.Sprintf("%d:%d:%s:%s", userID, sourceQuizID, mode, trigger))
	return &types.JobRun{JobType: JobTypeReviewReconcile}, true, nil
}

func (s *fakeJobService) EnqueueAssignmentHealIfNeeded(_ context.Context, userID int64, trigger string) (*types.JobRun, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heals = append(s.heals, userID)
	return &types.JobRun{JobType: JobTypeAssignmentHeal}, true, nil
}

func (s *fakeJobService) EnqueueCourseCacheRebuildIfNeeded(_ context.Context, userID, lmsCourseID int64) (*types.JobRun, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuilds = append(s.rebuilds, lmsCourseID)
	return &types.JobRun{JobType: JobTypeCourseCacheRebuild}, true, nil
}

// harness wires a reconcile service over the fakes with the real
// provisioning and analysis services in the loop.
type harness struct {
	lms     *fakeLMS
	flags   *fakeFlagRepo
	courses *fakeCourseRepo
	quizzes *fakeQuizRepo
	assigns *fakeAssignRepo
	jobs    *fakeJobService
	locker  locks.Locker

	provision ProvisionService
	analysis  AttemptAnalysisService
	reconcile ReconcileService
	events    EventService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := testLogger(t)
	h := &harness{
		lms:     newFakeLMS(),
		flags:   newFakeFlagRepo(),
		courses: newFakeCourseRepo(),
		quizzes: newFakeQuizRepo(),
		assigns: newFakeAssignRepo(),
		jobs:    &fakeJobService{},
		locker:  locks.NewLocal(),
	}
	h.provision = NewProvisionService(nil, log, h.lms, h.courses, h.quizzes)
	h.analysis = NewAttemptAnalysisService(log, h.lms)
	h.reconcile = NewReconcileService(
		nil, log, h.lms, h.locker,
		h.flags, h.courses, h.quizzes, h.assigns,
		h.provision, h.analysis, h.jobs,
	)
	h.events = NewEventService(log, h.lms, h.flags, h.courses, h.quizzes, h.reconcile, h.jobs)
	return h
}

// sourceQuiz registers a source quiz with sequential question ids.
func (h *harness) sourceQuiz(id int64, questionIDs ...int64) *lms.QuizInfo {
	refs := make([]lms.QuestionRef, 0, len(questionIDs))
	for _, qid := range questionIDs {
		refs = append(refs, lms.QuestionRef{ID: qid, QType: "multichoice"})
	}
	info := &lms.QuizInfo{ID: id, CourseID: 100, Name: fmt.Sprintf("Quiz %d", id), Questions: refs}
	h.lms.quizInfos[id] = info
	return info
}

// passedAttempt seeds a finished first attempt above the creation
// threshold so provisioning is not gated.
func (h *harness) passedAttempt(quizID, userID int64, grade float64) {
	h.lms.attempts[quizID] = append(h.lms.attempts[quizID], lms.Attempt{
		ID:      int64(len(h.lms.attempts[quizID]) + 1),
		QuizID:  quizID,
		UserID:  userID,
		Number:  len(h.lms.attempts[quizID]) + 1,
		State:   lms.AttemptFinished,
		GradePC: grade,
	})
}

func (h *harness) flag(userID, questionID int64, color string) {
	_ = h.flags.Upsert(context.Background(), nil, &types.QuestionFlag{
		UserID:     userID,
		QuestionID: questionID,
		Color:      color,
		Source:     types.FlagSourceManual,
	})
}

func (h *harness) assignedQuestions(t *testing.T, reviewQuizID uuid.UUID) []int64 {
	t.Helper()
	rows, err := h.assigns.GetByQuiz(context.Background(), nil, reviewQuizID)
	if err != nil {
		t.Fatalf("load assignments: %v", err)
	}
	out := make([]int64, 0, len(rows))
	for _, a := range rows {
		out = append(out, a.QuestionID)
	}
	return out
}

func (h *harness) reviewQuizFor(t *testing.T, userID, sourceQuizID int64) *types.ReviewQuiz {
	t.Helper()
	course, err := h.courses.GetByUser(context.Background(), nil, userID)
	if err != nil {
		t.Fatalf("load course: %v", err)
	}
	if course == nil {
		return nil
	}
	quiz, err := h.quizzes.GetByCourseAndSource(context.Background(), nil, course.ID, sourceQuizID)
	if err != nil {
		t.Fatalf("load quiz: %v", err)
	}
	return quiz
}
