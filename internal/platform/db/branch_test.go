package db

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

func testProvider() *Provider {
	return &Provider{
		pools: map[string]*pgxpool.Pool{
			"central": nil,
			"north":   nil,
		},
		defName: "central",
	}
}

func TestValidBranchName(t *testing.T) {
	valid := []string{"central", "north_2", "a", "branch_one"}
	for _, name := range valid {
		if !ValidBranchName(name) {
			t.Errorf("expected %q to be valid", name)
		}
	}

	invalid := []string{"", "Central", "1north", "north-2", "a b", "drop;table"}
	for _, name := range invalid {
		if ValidBranchName(name) {
			t.Errorf("expected %q to be invalid", name)
		}
	}
}

func TestProviderBranches(t *testing.T) {
	p := testProvider()

	names := p.Branches()
	if len(names) != 2 || names[0] != "central" || names[1] != "north" {
		t.Errorf("expected sorted [central north], got %v", names)
	}
	if p.DefaultBranch() != "central" {
		t.Errorf("expected default branch central, got %s", p.DefaultBranch())
	}
}

func branchEcho(t *testing.T, req *http.Request, setJWTBranch string) (*httptest.ResponseRecorder, string) {
	t.Helper()

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setJWTBranch != "" {
		c.Set("jwt_branch", setJWTBranch)
	}

	resolved := ""
	handler := BranchMiddleware(testProvider())(func(c echo.Context) error {
		branch, _ := BranchFromContext(c.Request().Context())
		resolved = branch
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, resolved
}

func TestBranchMiddlewareDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rec, branch := branchEcho(t, req, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if branch != "central" {
		t.Errorf("expected default branch central, got %s", branch)
	}
}

func TestBranchMiddlewareHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Branch", "north")

	rec, branch := branchEcho(t, req, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if branch != "north" {
		t.Errorf("expected branch north, got %s", branch)
	}
}

func TestBranchMiddlewareQueryParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?branch=north", nil)

	rec, branch := branchEcho(t, req, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if branch != "north" {
		t.Errorf("expected branch north, got %s", branch)
	}
}

func TestBranchMiddlewareTokenClaimWins(t *testing.T) {
	// A branch claim from the verified token overrides the header.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Branch", "central")

	rec, branch := branchEcho(t, req, "north")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if branch != "north" {
		t.Errorf("expected branch north from token claim, got %s", branch)
	}
}

func TestBranchMiddlewareUnknownBranch(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Branch", "south")

	rec, _ := branchEcho(t, req, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown branch, got %d", rec.Code)
	}
}

func TestBranchMiddlewareInvalidName(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Branch", "north; DROP TABLE payments")

	rec, _ := branchEcho(t, req, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid branch name, got %d", rec.Code)
	}
}
