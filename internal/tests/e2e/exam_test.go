//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/i-gras/apiserver/config"
	"github.com/i-gras/apiserver/internal/server"
	_ "github.com/lib/pq"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d", "postgres"); err != nil {
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

	scoringStub := startScoringStub()

	srv, err := startServer(scoringStub.URL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		scoringStub.Close()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		scoringStub.Close()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	scoringStub.Close()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestExamLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	email := fmt.Sprintf("siswa_%d@example.com", time.Now().UnixNano())
	password := "testpass123!"

	client := newSessionClient(t)

	if err := registerUser(t, client, baseURL, "Siswa Uji", email, password); err != nil {
		t.Fatalf("register user: %v", err)
	}

	sessionUser, err := fetchSession(t, client, baseURL)
	if err != nil {
		t.Fatalf("fetch session: %v", err)
	}
	if sessionUser == nil || sessionUser.Email != email {
		t.Fatalf("unexpected session user: %+v", sessionUser)
	}

	if err := expectScoreNotFound(t, client, baseURL); err != nil {
		t.Fatalf("expected no score before submission: %v", err)
	}

	score, err := submitEssays(t, client, baseURL, []string{
		"Tourism brings both opportunities and challenges to local communities.",
		"Technology has changed the way students prepare for examinations.",
	})
	if err != nil {
		t.Fatalf("submit essays: %v", err)
	}
	if score.TaskAchievement != 6.0 {
		t.Fatalf("unexpected task achievement band: %v", score.TaskAchievement)
	}
	if score.GrammaticalRange != 6.5 {
		t.Fatalf("unexpected grammatical band: %v", score.GrammaticalRange)
	}

	fetched, err := getScore(t, client, baseURL)
	if err != nil {
		t.Fatalf("get score: %v", err)
	}
	if fetched.ID != score.ID {
		t.Fatalf("unexpected score id: %d", fetched.ID)
	}

	if err := deleteScore(t, client, baseURL); err != nil {
		t.Fatalf("delete score: %v", err)
	}
	if err := expectScoreNotFound(t, client, baseURL); err != nil {
		t.Fatalf("expected score to be gone after delete: %v", err)
	}
}

func TestDemoAccountLogin(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	client := newSessionClient(t)

	payload := map[string]string{
		"email":    "demo@igras.app",
		"password": "igras123",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}

	resp, err := client.Post(baseURL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("demo login status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	user, err := fetchSession(t, client, baseURL)
	if err != nil {
		t.Fatalf("fetch session: %v", err)
	}
	if user == nil || user.Role != "admin" {
		t.Fatalf("expected demo admin session, got %+v", user)
	}
}

type scoreResponse struct {
	ID                int     `json:"id"`
	TaskAchievement   float64 `json:"task_achievement_average"`
	CoherenceCohesion float64 `json:"coherence_and_cohesion_average"`
	LexicalResource   float64 `json:"lexical_resource_average"`
	GrammaticalRange  float64 `json:"grammatical_range_average"`
}

type sessionUser struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func newSessionClient(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

func registerUser(t *testing.T, client *http.Client, baseURL, name, email, password string) error {
	t.Helper()

	payload := map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := client.Post(baseURL+"/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("register status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func fetchSession(t *testing.T, client *http.Client, baseURL string) (*sessionUser, error) {
	t.Helper()

	resp, err := client.Get(baseURL + "/auth/session")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("session status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed struct {
		User *sessionUser `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed.User, nil
}

func submitEssays(t *testing.T, client *http.Client, baseURL string, essays []string) (scoreResponse, error) {
	t.Helper()

	payload := map[string]any{
		"action": "submit-essays",
		"essays": essays,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return scoreResponse{}, err
	}

	resp, err := client.Post(baseURL+"/exam", "application/json", bytes.NewReader(body))
	if err != nil {
		return scoreResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return scoreResponse{}, fmt.Errorf("submit status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed struct {
		Score scoreResponse `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return scoreResponse{}, err
	}
	return parsed.Score, nil
}

func getScore(t *testing.T, client *http.Client, baseURL string) (scoreResponse, error) {
	t.Helper()

	resp, err := client.Get(baseURL + "/exam")
	if err != nil {
		return scoreResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return scoreResponse{}, fmt.Errorf("get score status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed struct {
		Score scoreResponse `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return scoreResponse{}, err
	}
	return parsed.Score, nil
}

func deleteScore(t *testing.T, client *http.Client, baseURL string) error {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, baseURL+"/exam", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func expectScoreNotFound(t *testing.T, client *http.Client, baseURL string) error {
	t.Helper()

	resp, err := client.Get(baseURL + "/exam")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("expected 404, got %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// startScoringStub serves the external scoring API shape with fixed
// averages so band rounding is deterministic.
func startScoringStub() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predict/avg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"average": map[string]float64{
				"task_achievement":       6.23,
				"coherence_and_cohesion": 5.77,
				"lexical_resource":       7.0,
				"grammatical_range":      6.49,
			},
		})
	}))
}

func waitForPostgres(ctx context.Context) error {
	cfg := loadTestConfig()
	dsn := buildPostgresURL(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
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
	cfg := loadTestConfig()
	dsn := buildPostgresURL(cfg)
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, dsn)
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

func buildPostgresURL(cfg config.Config) string {
	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}
	host := fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		host,
		cfg.Database.DBName,
		sslmode,
	)
}

func loadTestConfig() config.Config {
	setTestEnv()
	return config.LoadConfig()
}

func setTestEnv() {
	_ = os.Setenv("ENV", "test")
	_ = os.Setenv("AUTH_SECRET", "e2e-test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "igras")
	_ = os.Setenv("DB_PASSWORD", "igras")
	_ = os.Setenv("DB_NAME", "igras_db")
	_ = os.Setenv("DB_SSL", "false")
}

func startServer(scoringURL string) (*server.Server, error) {
	setTestEnv()
	_ = os.Setenv("SCORING_API_URL", scoringURL)

	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg)
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
