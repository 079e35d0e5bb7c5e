package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"task-tracker-service/apperrors"
	"task-tracker-service/logging"
	"task-tracker-service/models"
	"task-tracker-service/query"
	"task-tracker-service/store"
)

// taskDefaultLimit caps task listings when the caller supplies no explicit
// limit. User listings have no such cap; keep the asymmetry.
const taskDefaultLimit = 100

// TaskService owns the task lifecycle and the task-side half of the
// pending-tasks synchronization: every mutation that can break the
// task/user relationship issues compensating writes to the users
// collection. Those writes are dispatched fire-and-forget; their failures
// are logged, never surfaced.
type TaskService struct {
	tasks    store.Gateway
	users    store.Gateway
	dispatch func(func())
}

func NewTaskService(tasks, users store.Gateway) *TaskService {
	return &TaskService{
		tasks:    tasks,
		users:    users,
		dispatch: func(fn func()) { go fn() },
	}
}

// TaskInput is the decoded request body for task create and update.
type TaskInput struct {
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Deadline         time.Time `json:"deadline"`
	Completed        bool      `json:"completed"`
	AssignedUser     string    `json:"assignedUser"`
	AssignedUserName string    `json:"assignedUserName"`
	DateCreated      time.Time `json:"dateCreated"`
}

// TaskList is the result of a listing request: either a page of tasks or,
// when the caller asked for a count, the matching document count.
type TaskList struct {
	Tasks   []models.Task
	Count   int64
	Counted bool
}

func (s *TaskService) List(ctx context.Context, raw query.Raw) (*TaskList, error) {
	plan, err := query.Translate(raw, taskDefaultLimit)
	if err != nil {
		return nil, err
	}

	if plan.Count {
		count, err := s.tasks.CountDocuments(ctx, plan.Filter)
		if err != nil {
			return nil, apperrors.Store("Failed to count tasks", err)
		}
		return &TaskList{Count: count, Counted: true}, nil
	}

	tasks := []models.Task{}
	opts := store.FindOptions{
		Sort:       plan.Sort,
		Projection: plan.Projection,
		Skip:       plan.Skip,
		Limit:      plan.Limit,
	}
	if err := s.tasks.Find(ctx, plan.Filter, opts, &tasks); err != nil {
		return nil, apperrors.Store("Failed to retrieve tasks", err)
	}
	return &TaskList{Tasks: tasks}, nil
}

func (s *TaskService) Get(ctx context.Context, id, rawSelect string) (*models.Task, error) {
	var projection bson.M
	if rawSelect != "" {
		var err error
		projection, err = query.ParseProjection(rawSelect)
		if err != nil {
			return nil, err
		}
	}

	var task models.Task
	if err := s.tasks.FindByID(ctx, id, projection, &task); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("Task not found")
		}
		return nil, apperrors.Store("Failed to retrieve task", err)
	}
	return &task, nil
}

func (s *TaskService) Create(ctx context.Context, input TaskInput) (*models.Task, error) {
	if input.Name == "" || input.Deadline.IsZero() {
		return nil, apperrors.BadRequest("Name and deadline are required")
	}

	task := models.Task{
		Name:             input.Name,
		Description:      input.Description,
		Deadline:         input.Deadline,
		Completed:        input.Completed,
		AssignedUser:     input.AssignedUser,
		AssignedUserName: input.AssignedUserName,
		DateCreated:      input.DateCreated,
	}
	if task.AssignedUserName == "" {
		task.AssignedUserName = models.UnassignedName
	}
	if task.DateCreated.IsZero() {
		task.DateCreated = time.Now()
	}

	if task.AssignedUser != "" {
		assignee, err := s.lookupAssignee(ctx, task.AssignedUser)
		if err != nil {
			return nil, err
		}
		// The assignee's current name wins over anything the caller sent.
		task.AssignedUserName = assignee.Name
	}

	id, err := s.tasks.InsertOne(ctx, &task)
	if err != nil {
		return nil, apperrors.Store("Failed to create task", err)
	}
	if objID, err := primitive.ObjectIDFromHex(id); err == nil {
		task.ID = objID
	}

	if task.AssignedUser != "" && !task.Completed {
		s.addPending(task.AssignedUser, id)
	}

	return &task, nil
}

func (s *TaskService) Update(ctx context.Context, id string, input TaskInput) (*models.Task, error) {
	if input.Name == "" || input.Deadline.IsZero() {
		return nil, apperrors.BadRequest("Name and deadline are required")
	}

	var oldTask models.Task
	if err := s.tasks.FindByID(ctx, id, nil, &oldTask); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("Task not found")
		}
		return nil, apperrors.Store("Failed to retrieve task", err)
	}

	updated := models.Task{
		ID:               oldTask.ID,
		Name:             input.Name,
		Description:      input.Description,
		Deadline:         input.Deadline,
		Completed:        input.Completed,
		AssignedUser:     input.AssignedUser,
		AssignedUserName: input.AssignedUserName,
		DateCreated:      input.DateCreated,
	}
	if updated.AssignedUserName == "" {
		updated.AssignedUserName = models.UnassignedName
	}
	if updated.DateCreated.IsZero() {
		updated.DateCreated = time.Now()
	}

	if updated.AssignedUser != "" {
		assignee, err := s.lookupAssignee(ctx, updated.AssignedUser)
		if err != nil {
			return nil, err
		}
		updated.AssignedUserName = assignee.Name
	}

	update := bson.M{"$set": bson.M{
		"name":             updated.Name,
		"description":      updated.Description,
		"deadline":         updated.Deadline,
		"completed":        updated.Completed,
		"assignedUser":     updated.AssignedUser,
		"assignedUserName": updated.AssignedUserName,
		"dateCreated":      updated.DateCreated,
	}}
	if err := s.tasks.UpdateByID(ctx, id, update); err != nil {
		return nil, apperrors.Store("Failed to update task", err)
	}

	oldAssignee := oldTask.AssignedUser
	newAssignee := updated.AssignedUser
	oldCompleted := oldTask.Completed
	newCompleted := updated.Completed

	// Transition rules, evaluated independently: a reassignment fires the
	// first two together, one compensating write per affected user.
	if oldAssignee != "" && (oldAssignee != newAssignee || newCompleted) {
		s.removePending(oldAssignee, id)
	}
	if newAssignee != "" && oldAssignee != newAssignee && !newCompleted {
		s.addPending(newAssignee, id)
	}
	if oldAssignee != "" && oldAssignee == newAssignee {
		if !oldCompleted && newCompleted {
			s.removePending(oldAssignee, id)
		} else if oldCompleted && !newCompleted {
			s.addPending(oldAssignee, id)
		}
	}

	return &updated, nil
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	var task models.Task
	if err := s.tasks.FindByID(ctx, id, nil, &task); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NotFound("Task not found")
		}
		return apperrors.Store("Failed to retrieve task", err)
	}

	if task.AssignedUser != "" {
		s.removePending(task.AssignedUser, id)
	}

	if err := s.tasks.DeleteByID(ctx, id); err != nil {
		return apperrors.Store("Failed to delete task", err)
	}
	return nil
}

func (s *TaskService) lookupAssignee(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.users.FindByID(ctx, userID, nil, &user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.Validation("Assigned user not found")
		}
		return nil, apperrors.Store("Failed to validate assigned user", err)
	}
	return &user, nil
}

// addPending adds taskID to the user's pendingTasks set. $addToSet keeps
// the add idempotent under replayed compensations.
func (s *TaskService) addPending(userID, taskID string) {
	s.dispatch(func() {
		err := s.users.UpdateByID(context.Background(), userID,
			bson.M{"$addToSet": bson.M{"pendingTasks": taskID}})
		if err != nil {
			logging.Logger.Errorf("Event ID: PENDING_TASKS_ADD_FAILED, Description: Failed to add task %s to pendingTasks of user %s: %v", taskID, userID, err)
		}
	})
}

func (s *TaskService) removePending(userID, taskID string) {
	s.dispatch(func() {
		err := s.users.UpdateByID(context.Background(), userID,
			bson.M{"$pull": bson.M{"pendingTasks": taskID}})
		if err != nil {
			logging.Logger.Errorf("Event ID: PENDING_TASKS_REMOVE_FAILED, Description: Failed to remove task %s from pendingTasks of user %s: %v", taskID, userID, err)
		}
	})
}
