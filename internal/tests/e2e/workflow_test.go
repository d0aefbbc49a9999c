//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/nsmonitor/apiserver/config"
	"github.com/nsmonitor/apiserver/internal/db"
	"github.com/nsmonitor/apiserver/internal/logging"
	"github.com/nsmonitor/apiserver/internal/server"
	"github.com/nsmonitor/apiserver/internal/services"
	"github.com/nsmonitor/apiserver/internal/store"
	"github.com/nsmonitor/apiserver/types"
)

const (
	serverPort = 18080
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	setEnv()

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestUpdateApprovalLifecycle(t *testing.T) {
	email := fmt.Sprintf("admin_%d@example.com", time.Now().UnixNano())
	password := "testpass123!"

	adminID, err := createSuperAdmin(email, password)
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}

	token, err := login(email, password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	var project struct {
		ID int `json:"id"`
	}
	status, err := call(http.MethodPost, "/projects", token, map[string]any{
		"name":                      "Minna Water Scheme",
		"id_code":                   fmt.Sprintf("E2E-%d", time.Now().UnixNano()%1000000),
		"project_manager_id":        adminID,
		"implementing_organization": "Ministry of Water Resources",
		"project_location":          "Minna",
		"sector":                    "Water & Sanitation",
		"start_date":                "2026-01-01",
		"end_date":                  "2026-12-31",
		"overall_goal":              "Potable water for 20,000 residents",
		"description":               "Borehole and reticulation works",
		"total_budget":              1000000,
	}, &project)
	if err != nil || status != http.StatusCreated {
		t.Fatalf("create project: status %d: %v", status, err)
	}

	var update struct {
		ID     int    `json:"id"`
		Status string `json:"status"`
	}
	updatesPath := fmt.Sprintf("/projects/%d/updates", project.ID)
	status, err = call(http.MethodPost, updatesPath, token, map[string]any{
		"update_type":         "progress",
		"title":               "Week 4 progress",
		"description":         "Drilling completed at two sites",
		"progress_percentage": 35,
	}, &update)
	if err != nil || status != http.StatusCreated {
		t.Fatalf("create update: status %d: %v", status, err)
	}
	if update.Status != "draft" {
		t.Fatalf("unexpected update status: %q", update.Status)
	}

	updatePath := fmt.Sprintf("%s/%d", updatesPath, update.ID)
	status, err = call(http.MethodPost, updatePath+"/approve", token, nil, nil)
	if err != nil || status != http.StatusUnprocessableEntity {
		t.Fatalf("approve draft: expected 422, got %d: %v", status, err)
	}

	status, err = call(http.MethodPost, updatePath+"/submit", token, nil, &update)
	if err != nil || status != http.StatusOK || update.Status != "pending" {
		t.Fatalf("submit: status %d, update %q: %v", status, update.Status, err)
	}

	status, err = call(http.MethodPost, updatePath+"/approve", token, nil, &update)
	if err != nil || status != http.StatusOK || update.Status != "approved" {
		t.Fatalf("approve: status %d, update %q: %v", status, update.Status, err)
	}

	var fetched struct {
		ProgressPercentage float64 `json:"progress_percentage"`
	}
	status, err = call(http.MethodGet, fmt.Sprintf("/projects/%d", project.ID), token, nil, &fetched)
	if err != nil || status != http.StatusOK {
		t.Fatalf("get project: status %d: %v", status, err)
	}
	if fetched.ProgressPercentage != 35 {
		t.Fatalf("unexpected project progress: %v", fetched.ProgressPercentage)
	}

	attachmentID, err := uploadAttachment(token, project.ID, update.ID)
	if err != nil {
		t.Fatalf("upload attachment: %v", err)
	}
	body, err := download(token, attachmentID)
	if err != nil {
		t.Fatalf("download attachment: %v", err)
	}
	if body != "site report" {
		t.Fatalf("unexpected attachment body: %q", body)
	}

	status, err = call(http.MethodPost, "/logout", token, nil, nil)
	if err != nil || status != http.StatusOK {
		t.Fatalf("logout: status %d: %v", status, err)
	}
	status, err = call(http.MethodGet, "/auth/user", token, nil, nil)
	if err != nil || status != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d: %v", status, err)
	}
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func createSuperAdmin(email, password string) (int, error) {
	cfg := config.LoadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	roles := store.NewRoleRepository(conn)
	role, err := roles.GetByName(ctx, types.RoleSuperAdmin)
	if err != nil {
		return 0, err
	}
	users := services.NewUserService(store.NewUserRepository(conn), roles)
	user, err := users.Create(ctx, services.UserInput{
		Name:                 "E2E Admin",
		Email:                email,
		Password:             password,
		PasswordConfirmation: password,
		RoleID:               &role.ID,
	})
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

func login(email, password string) (string, error) {
	var auth struct {
		Token string `json:"token"`
	}
	status, err := call(http.MethodPost, "/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &auth)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || auth.Token == "" {
		return "", fmt.Errorf("login status %d", status)
	}
	return auth.Token, nil
}

// call sends a JSON request and decodes the envelope's data into out.
func call(method, path, token string, payload, out any) (int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, baseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(req, out)
}

func do(req *http.Request, out any) (int, error) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, err
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func uploadAttachment(token string, projectID, updateID int) (int, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("project_update_id", fmt.Sprint(updateID))
	_ = writer.WriteField("category", "project_update")
	_ = writer.WriteField("descriptions[]", "Week 4 site report")

	part, err := writer.CreateFormFile("files[]", "report.txt")
	if err != nil {
		return 0, err
	}
	if _, err := part.Write([]byte("site report")); err != nil {
		return 0, err
	}
	if err := writer.Close(); err != nil {
		return 0, err
	}

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/projects/%d/attachments", baseURL, projectID), &body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result services.UploadResult
	status, err := do(req, &result)
	if err != nil {
		return 0, err
	}
	if status != http.StatusCreated || len(result.Uploaded) != 1 {
		return 0, fmt.Errorf("upload status %d, failed %v", status, result.Failed)
	}
	return result.Uploaded[0].ID, nil
}

func download(token string, attachmentID int) (string, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/attachments/%d/download", baseURL, attachmentID), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return string(raw), nil
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		conn, err := db.Open(ctx, cfg.Database)
		if err == nil {
			return conn.Close()
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "monitor")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "monitor_db")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("MINIO_ACCESS_KEY", "minioadmin")
	_ = os.Setenv("MINIO_SECRET_KEY", "minioadmin")
	_ = os.Setenv("MINIO_BUCKET", "monitor-e2e")
	_ = os.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func startServer(ctx context.Context) (*server.Server, error) {
	cfg := config.LoadConfig()
	srv, err := server.New(ctx, cfg, logging.New(cfg.Log))
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
