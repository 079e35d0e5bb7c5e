package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"task-tracker-service/apperrors"
	"task-tracker-service/logging"
	"task-tracker-service/models"
	"task-tracker-service/query"
	"task-tracker-service/store"
)

// UserService owns the user lifecycle and the user-side half of the
// synchronization: updating a user reconciles the requested pendingTasks
// against actual task state before persisting, then cascades the resulting
// assignment changes onto the tasks collection.
type UserService struct {
	users    store.Gateway
	tasks    store.Gateway
	dispatch func(func())
}

func NewUserService(users, tasks store.Gateway) *UserService {
	return &UserService{
		users:    users,
		tasks:    tasks,
		dispatch: func(fn func()) { go fn() },
	}
}

// UserInput is the decoded request body for user create and update.
// PendingTasks stays untyped: callers may send a list, a single id, or
// nothing, and ids may arrive as numbers.
type UserInput struct {
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	PendingTasks interface{} `json:"pendingTasks"`
	DateCreated  time.Time   `json:"dateCreated"`
}

type UserList struct {
	Users   []models.User
	Count   int64
	Counted bool
}

func (s *UserService) List(ctx context.Context, raw query.Raw) (*UserList, error) {
	plan, err := query.Translate(raw, 0)
	if err != nil {
		return nil, err
	}

	if plan.Count {
		count, err := s.users.CountDocuments(ctx, plan.Filter)
		if err != nil {
			return nil, apperrors.Store("Failed to count users", err)
		}
		return &UserList{Count: count, Counted: true}, nil
	}

	users := []models.User{}
	opts := store.FindOptions{
		Sort:       plan.Sort,
		Projection: plan.Projection,
		Skip:       plan.Skip,
		Limit:      plan.Limit,
	}
	if err := s.users.Find(ctx, plan.Filter, opts, &users); err != nil {
		return nil, apperrors.Store("Failed to retrieve users", err)
	}
	return &UserList{Users: users}, nil
}

func (s *UserService) Get(ctx context.Context, id, rawSelect string) (*models.User, error) {
	var projection bson.M
	if rawSelect != "" {
		var err error
		projection, err = query.ParseProjection(rawSelect)
		if err != nil {
			return nil, err
		}
	}

	var user models.User
	if err := s.users.FindByID(ctx, id, projection, &user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Store("Failed to retrieve user", err)
	}
	return &user, nil
}

// Create stores the user with the pendingTasks seed as supplied. The seed
// is not reconciled against task state here; only Update does that.
func (s *UserService) Create(ctx context.Context, input UserInput) (*models.User, error) {
	if input.Name == "" || input.Email == "" {
		return nil, apperrors.BadRequest("Name and email are required")
	}

	user := models.User{
		Name:         input.Name,
		Email:        input.Email,
		PendingTasks: coercePendingTasks(input.PendingTasks),
		DateCreated:  input.DateCreated,
	}
	if user.DateCreated.IsZero() {
		user.DateCreated = time.Now()
	}

	id, err := s.users.InsertOne(ctx, &user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, apperrors.DuplicateEmail("A user with this email already exists")
		}
		return nil, apperrors.Store("Failed to create user", err)
	}
	if objID, err := primitive.ObjectIDFromHex(id); err == nil {
		user.ID = objID
	}
	return &user, nil
}

// Update replaces the user's mutable fields and reconciles pendingTasks.
// The effective list keeps requested ids whose task exists and is not
// completed, drops ids whose task exists but is completed, and preserves
// ids that resolve to no task at all (dangling references are the caller's
// to clean up, not ours to guess about).
func (s *UserService) Update(ctx context.Context, id string, input UserInput) (*models.User, error) {
	if input.Name == "" || input.Email == "" {
		return nil, apperrors.BadRequest("Name and email are required")
	}

	var existing models.User
	if err := s.users.FindByID(ctx, id, nil, &existing); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Store("Failed to retrieve user", err)
	}

	if existing.Email != input.Email {
		if err := s.checkEmailFree(ctx, input.Email); err != nil {
			return nil, err
		}
	}

	requested := coercePendingTasks(input.PendingTasks)

	tasks := []models.Task{}
	if len(requested) > 0 {
		if err := s.tasks.Find(ctx, store.IDFilter(requested), store.FindOptions{}, &tasks); err != nil {
			// Reconcile against what we could read; unresolvable ids are
			// treated as dangling and preserved.
			logging.Logger.Errorf("Event ID: PENDING_TASKS_FETCH_FAILED, Description: Failed to fetch tasks for reconciliation of user %s: %v", id, err)
			tasks = nil
		}
	}
	byID := make(map[string]models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID.Hex()] = t
	}

	effective := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, taskID := range requested {
		if seen[taskID] {
			continue
		}
		if task, exists := byID[taskID]; exists && task.Completed {
			continue
		}
		seen[taskID] = true
		effective = append(effective, taskID)
	}

	toRemove := difference(existing.PendingTasks, effective)
	toAdd := difference(effective, existing.PendingTasks)
	retained := intersection(effective, existing.PendingTasks)

	updated := models.User{
		ID:           existing.ID,
		Name:         input.Name,
		Email:        input.Email,
		PendingTasks: effective,
		DateCreated:  input.DateCreated,
	}
	if updated.DateCreated.IsZero() {
		updated.DateCreated = time.Now()
	}

	update := bson.M{"$set": bson.M{
		"name":         updated.Name,
		"email":        updated.Email,
		"pendingTasks": updated.PendingTasks,
		"dateCreated":  updated.DateCreated,
	}}
	if err := s.users.UpdateByID(ctx, id, update); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, apperrors.DuplicateEmail("A user with this email already exists")
		}
		return nil, apperrors.Store("Failed to update user", err)
	}

	if len(toRemove) > 0 {
		s.unassignTasks(toRemove)
	}
	if len(toAdd) > 0 {
		s.assignTasks(toAdd, id, updated.Name)
	}
	if len(retained) > 0 && existing.Name != updated.Name {
		s.renameAssignee(retained, updated.Name)
	}

	return &updated, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	var user models.User
	if err := s.users.FindByID(ctx, id, nil, &user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NotFound("User not found")
		}
		return apperrors.Store("Failed to retrieve user", err)
	}

	if len(user.PendingTasks) > 0 {
		s.unassignTasks(user.PendingTasks)
	}

	if err := s.users.DeleteByID(ctx, id); err != nil {
		return apperrors.Store("Failed to delete user", err)
	}
	return nil
}

// checkEmailFree is a best-effort pre-check; the unique index still backs
// it up if a concurrent write wins the race.
func (s *UserService) checkEmailFree(ctx context.Context, email string) error {
	matches := []models.User{}
	limit := int64(1)
	if err := s.users.Find(ctx, bson.M{"email": email}, store.FindOptions{Limit: &limit}, &matches); err != nil {
		return apperrors.Store("Failed to check email uniqueness", err)
	}
	if len(matches) > 0 {
		return apperrors.DuplicateEmail("A user with this email already exists")
	}
	return nil
}

func (s *UserService) unassignTasks(taskIDs []string) {
	s.dispatch(func() {
		err := s.tasks.UpdateMany(context.Background(), store.IDFilter(taskIDs),
			bson.M{"$set": bson.M{"assignedUser": "", "assignedUserName": models.UnassignedName}})
		if err != nil {
			logging.Logger.Errorf("Event ID: TASK_UNASSIGN_FAILED, Description: Failed to unassign tasks %v: %v", taskIDs, err)
		}
	})
}

func (s *UserService) assignTasks(taskIDs []string, userID, userName string) {
	s.dispatch(func() {
		err := s.tasks.UpdateMany(context.Background(), store.IDFilter(taskIDs),
			bson.M{"$set": bson.M{"assignedUser": userID, "assignedUserName": userName}})
		if err != nil {
			logging.Logger.Errorf("Event ID: TASK_ASSIGN_FAILED, Description: Failed to assign tasks %v to user %s: %v", taskIDs, userID, err)
		}
	})
}

func (s *UserService) renameAssignee(taskIDs []string, userName string) {
	s.dispatch(func() {
		err := s.tasks.UpdateMany(context.Background(), store.IDFilter(taskIDs),
			bson.M{"$set": bson.M{"assignedUserName": userName}})
		if err != nil {
			logging.Logger.Errorf("Event ID: TASK_RENAME_FAILED, Description: Failed to update assignedUserName on tasks %v: %v", taskIDs, err)
		}
	})
}

// coercePendingTasks normalizes the raw pendingTasks payload into string
// ids: absent means empty, a single value becomes a one-element list, and
// numeric ids are stringified.
func coercePendingTasks(raw interface{}) []string {
	if raw == nil {
		return []string{}
	}
	values, ok := raw.([]interface{})
	if !ok {
		values = []interface{}{raw}
	}
	ids := make([]string, 0, len(values))
	for _, value := range values {
		switch v := value.(type) {
		case string:
			ids = append(ids, v)
		case float64:
			ids = append(ids, strconv.FormatFloat(v, 'f', -1, 64))
		default:
			ids = append(ids, fmt.Sprintf("%v", v))
		}
	}
	return ids
}

func difference(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, v := range b {
		inB[v] = true
	}
	out := []string{}
	for _, v := range a {
		if !inB[v] {
			out = append(out, v)
		}
	}
	return out
}

func intersection(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, v := range b {
		inB[v] = true
	}
	out := []string{}
	for _, v := range a {
		if inB[v] {
			out = append(out, v)
		}
	}
	return out
}
