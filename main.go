package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"task-tracker-service/handlers"
	"task-tracker-service/logging"
	"task-tracker-service/services"
	"task-tracker-service/store"
)

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	logging.InitLogger()

	logging.Logger.Info("Event ID: SERVICE_START, Description: Starting Task Tracker Service...")
	if err := godotenv.Load(".env"); err != nil {
		logging.Logger.Warnf("Event ID: ENV_LOAD_WARNING, Description: No .env file loaded: %v", err)
	}

	mongoURI := getenv("MONGO_URI", "mongodb://localhost:27017")
	mongoDBName := getenv("MONGO_DB_NAME", "task_tracker")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		logging.Logger.Fatalf("Event ID: DB_CONNECTION_FAILED, Description: Database connection for MongoDB failed: %v", err)
	}
	defer client.Disconnect(ctx)

	if err := client.Ping(ctx, nil); err != nil {
		logging.Logger.Fatalf("Event ID: DB_PING_FAILED, Description: MongoDB connection ping error: %v", err)
	}
	logging.Logger.Infof("Event ID: DB_CONNECTED, Description: Successfully connected to MongoDB at %s.", mongoURI)

	db := client.Database(mongoDBName)
	tasksCollection := db.Collection("tasks")
	usersCollection := db.Collection("users")

	if err := store.EnsureUserIndexes(ctx, usersCollection); err != nil {
		logging.Logger.Fatalf("Event ID: DB_INDEX_FAILED, Description: Failed to create unique email index: %v", err)
	}

	storeBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "DocumentStoreCB",
		MaxRequests: 1,
		Timeout:     2 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
	})

	tasksGateway := store.NewMongoGateway(tasksCollection, storeBreaker)
	usersGateway := store.NewMongoGateway(usersCollection, storeBreaker)

	taskService := services.NewTaskService(tasksGateway, usersGateway)
	userService := services.NewUserService(usersGateway, tasksGateway)
	taskHandler := handlers.NewTaskHandler(taskService)
	userHandler := handlers.NewUserHandler(userService)

	r := mux.NewRouter()

	r.HandleFunc("/api", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"message":"OK","data":"task tracker api"}`)
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/tasks", taskHandler.List).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks", taskHandler.Create).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{id}", taskHandler.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{id}", taskHandler.Update).Methods(http.MethodPut)
	r.HandleFunc("/api/tasks/{id}", taskHandler.Delete).Methods(http.MethodDelete)

	r.HandleFunc("/api/users", userHandler.List).Methods(http.MethodGet)
	r.HandleFunc("/api/users", userHandler.Create).Methods(http.MethodPost)
	r.HandleFunc("/api/users/{id}", userHandler.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{id}", userHandler.Update).Methods(http.MethodPut)
	r.HandleFunc("/api/users/{id}", userHandler.Delete).Methods(http.MethodDelete)

	corsRouter := enableCORS(r)

	serverPort := getenv("SERVER_PORT", "4000")
	serverAddress := fmt.Sprintf(":%s", serverPort)
	logging.Logger.Infof("Event ID: SERVER_START_INFO, Description: Server running on http://localhost%s", serverAddress)

	if err := http.ListenAndServe(serverAddress, corsRouter); err != nil {
		logging.Logger.Fatalf("Event ID: SERVER_FATAL_ERROR, Description: Server failed to start: %v", err)
	}
}
