package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"task-tracker-service/apperrors"
	"task-tracker-service/models"
	"task-tracker-service/query"
	"task-tracker-service/store"
)

func newTestUserService(users, tasks store.Gateway) *UserService {
	s := NewUserService(users, tasks)
	s.dispatch = func(fn func()) { fn() }
	return s
}

func returnTasks(list []models.Task) func(mock.Arguments) {
	return func(args mock.Arguments) {
		*args.Get(3).(*[]models.Task) = list
	}
}

func returnUsers(list []models.User) func(mock.Arguments) {
	return func(args mock.Arguments) {
		*args.Get(3).(*[]models.User) = list
	}
}

func TestCreateUser_RequiresNameAndEmail(t *testing.T) {
	users := new(mockGateway)
	tasks := new(mockGateway)
	service := newTestUserService(users, tasks)

	_, err := service.Create(context.Background(), UserInput{Name: "Alice"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeBadRequest, apperrors.CodeOf(err))
	users.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything)
}

func TestCreateUser_SeedStoredWithoutReconciliation(t *testing.T) {
	users := new(mockGateway)
	tasks := new(mockGateway)
	service := newTestUserService(users, tasks)

	var inserted *models.User
	users.On("InsertOne", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			inserted = args.Get(1).(*models.User)
		}).
		Return(primitive.NewObjectID().Hex(), nil)

	// A single value is coerced into a one-element list; no task lookups
	// happen on create.
	user, err := service.Create(context.Background(), UserInput{
		Name:         "Alice",
		Email:        "alice@example.com",
		PendingTasks: "someTaskId",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"someTaskId"}, user.PendingTasks)
	require.NotNil(t, inserted)
	assert.Equal(t, []string{"someTaskId"}, inserted.PendingTasks)
	tasks.AssertNotCalled(t, "Find", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	users := new(mockGateway)
	tasks := new(mockGateway)
	service := newTestUserService(users, tasks)

	users.On("InsertOne", mock.Anything, mock.Anything).Return("", store.ErrDuplicateKey)

	_, err := service.Create(context.Background(), UserInput{Name: "Alice", Email: "taken@example.com"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeDuplicateEmail, apperrors.CodeOf(err))
	assert.Equal(t, "A user with this email already exists", err.Error())
}

func TestUpdateUser_Reconciliation(t *testing.T) {
	users := new(mockGateway)
	tasks := new(mockGateway)
	service := newTestUserService(users, tasks)

	userID := primitive.NewObjectID()
	removedID := primitive.NewObjectID().Hex()   // stored, no longer requested
	retainedID := primitive.NewObjectID().Hex()  // stored and requested, incomplete
	completedID := primitive.NewObjectID().Hex() // requested but completed
	danglingID := primitive.NewObjectID().Hex()  // requested, no such task

	existing := models.User{
		ID:           userID,
		Name:         "Alice",
		Email:        "alice@example.com",
		PendingTasks: []string{removedID, retainedID},
	}

	users.On("FindByID", mock.Anything, userID.Hex(), bson.M(nil), mock.Anything).
		Run(returnUser(existing)).Return(nil)

	requested := []string{retainedID, completedID, danglingID}
	retainedObjID, _ := primitive.ObjectIDFromHex(retainedID)
	completedObjID, _ := primitive.ObjectIDFromHex(completedID)
	tasks.On("Find", mock.Anything, store.IDFilter(requested), store.FindOptions{}, mock.Anything).
		Run(returnTasks([]models.Task{
			{ID: retainedObjID, Name: "kept", Completed: false},
			{ID: completedObjID, Name: "done", Completed: true},
		})).Return(nil)

	// Effective list: completed id dropped, dangling id preserved.
	users.On("UpdateByID", mock.Anything, userID.Hex(), mock.MatchedBy(func(update bson.M) bool {
		set := update["$set"].(bson.M)
		pending, ok := set["pendingTasks"].([]string)
		return ok && assert.ObjectsAreEqual([]string{retainedID, danglingID}, pending) &&
			set["name"] == "Alicia" && set["email"] == "alice@example.com"
	})).Return(nil)

	tasks.On("UpdateMany", mock.Anything, store.IDFilter([]string{removedID}),
		bson.M{"$set": bson.M{"assignedUser": "", "assignedUserName": models.UnassignedName}}).Return(nil).Once()
	tasks.On("UpdateMany", mock.Anything, store.IDFilter([]string{danglingID}),
		bson.M{"$set": bson.M{"assignedUser": userID.Hex(), "assignedUserName": "Alicia"}}).Return(nil).Once()
	// Name changed, so tasks kept across the update get the new name too.
	tasks.On("UpdateMany", mock.Anything, store.IDFilter([]string{retainedID}),
		bson.M{"$set": bson.M{"assignedUserName": "Alicia"}}).Return(nil).Once()

	updated, err := service.Update(context.Background(), userID.Hex(), UserInput{
		Name:         "Alicia",
		Email:        "alice@example.com",
		PendingTasks: []interface{}{retainedID, completedID, danglingID},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{retainedID, danglingID}, updated.PendingTasks)
	users.AssertExpectations(t)
	tasks.AssertExpectations(t)
}

func TestUpdateUser_NoCascadesWhenNothingChanges(t *testing.T) {
	users := new(mockGateway)
	tasks := new(mockGateway)
	service := newTestUserService(users, tasks)

	userID := primitive.NewObjectID()
	taskID := primitive.NewObjectID()
	existing := models.User{
		ID:           userID,
		Name:         "Alice",
		Email:        "alice@example.com",
		PendingTasks: []string{taskID.Hex()},
	}

	users.On("FindByID", mock.Anything, userID.Hex(), bson.M(nil), mock.Anything).
		Run(returnUser(existing)).Return(nil)
	tasks.On("Find", mock.Anything, mock.Anything, store.FindOptions{}, mock.Anything).
		Run(returnTasks([]models.Task{{ID: taskID, Name: "kept"}})).Return(nil)
	users.On("UpdateByID", mock.Anything, userID.Hex(), mock.Anything).Return(nil)

	_, err := service.Update(context.Background(), userID.Hex(), UserInput{
		Name:         "Alice",
		Email:        "alice@example.com",
		PendingTasks: []interface{}{taskID.Hex()},
	})
	require.NoError(t, err)
	tasks.AssertNotCalled(t, "UpdateMany", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateUser_EmailPreCheck(t *testing.T) {
	users := new(mockGateway)
	tasks := new(mockGateway)
	service := newTestUserService(users, tasks)

	userID := primitive.NewObjectID()
	existing := models.User{ID: userID, Name: "Alice", Email: "alice@example.com"}

	users.On("FindByID", mock.Anything, userID.Hex(), bson.M(nil), mock.Anything).
		Run(returnUser(existing)).Return(nil)
	users.On("Find", mock.Anything, bson.M{"email": "bob@example.com"}, mock.Anything, mock.Anything).
		Run(returnUsers([]models.User{{ID: primitive.NewObjectID(), Email: "bob@example.com"}})).Return(nil)

	_, err := service.Update(context.Background(), userID.Hex(), UserInput{
		Name:  "Alice",
		Email: "bob@example.com",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeDuplicateEmail, apperrors.CodeOf(err))
	users.AssertNotCalled(t, "UpdateByID", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateUser_NotFound(t *testing.T) {
	users := new(mockGateway)
	tasks := new(mockGateway)
	service := newTestUserService(users, tasks)

	missing := primitive.NewObjectID().Hex()
	users.On("FindByID", mock.Anything, missing, bson.M(nil), mock.Anything).Return(store.ErrNotFound)

	_, err := service.Update(context.Background(), missing, UserInput{Name: "Alice", Email: "alice@example.com"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestDeleteUser_UnassignsPendingTasks(t *testing.T) {
	users := new(mockGateway)
	tasks := new(mockGateway)
	service := newTestUserService(users, tasks)

	userID := primitive.NewObjectID()
	t1 := primitive.NewObjectID().Hex()
	t2 := primitive.NewObjectID().Hex()
	user := models.User{ID: userID, Name: "Alice", Email: "alice@example.com", PendingTasks: []string{t1, t2}}

	users.On("FindByID", mock.Anything, userID.Hex(), bson.M(nil), mock.Anything).
		Run(returnUser(user)).Return(nil)
	tasks.On("UpdateMany", mock.Anything, store.IDFilter([]string{t1, t2}),
		bson.M{"$set": bson.M{"assignedUser": "", "assignedUserName": models.UnassignedName}}).Return(nil).Once()
	users.On("DeleteByID", mock.Anything, userID.Hex()).Return(nil)

	require.NoError(t, service.Delete(context.Background(), userID.Hex()))
	users.AssertExpectations(t)
	tasks.AssertExpectations(t)
}

func TestDeleteUser_NotFound(t *testing.T) {
	users := new(mockGateway)
	tasks := new(mockGateway)
	service := newTestUserService(users, tasks)

	missing := primitive.NewObjectID().Hex()
	users.On("FindByID", mock.Anything, missing, bson.M(nil), mock.Anything).Return(store.ErrNotFound)

	err := service.Delete(context.Background(), missing)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
	users.AssertNotCalled(t, "DeleteByID", mock.Anything, mock.Anything)
}

func TestListUsers_NoDefaultLimit(t *testing.T) {
	users := new(mockGateway)
	tasks := new(mockGateway)
	service := newTestUserService(users, tasks)

	users.On("Find", mock.Anything, bson.M{}, mock.MatchedBy(func(opts store.FindOptions) bool {
		return opts.Limit == nil
	}), mock.Anything).Return(nil)

	_, err := service.List(context.Background(), query.Raw{})
	require.NoError(t, err)
	users.AssertExpectations(t)
}

func TestListUsers_Count(t *testing.T) {
	users := new(mockGateway)
	tasks := new(mockGateway)
	service := newTestUserService(users, tasks)

	users.On("CountDocuments", mock.Anything, bson.M{"name": "Alice"}).Return(int64(3), nil)

	result, err := service.List(context.Background(), query.Raw{Where: `{"name":"Alice"}`, Count: "true"})
	require.NoError(t, err)
	assert.True(t, result.Counted)
	assert.Equal(t, int64(3), result.Count)
}

func TestCoercePendingTasks(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
		want []string
	}{
		{"nil", nil, []string{}},
		{"single string", "a", []string{"a"}},
		{"list", []interface{}{"a", "b"}, []string{"a", "b"}},
		{"numeric ids", []interface{}{float64(42), "b"}, []string{"42", "b"}},
		{"single number", float64(7), []string{"7"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, coercePendingTasks(tt.raw))
		})
	}
}
