package directory

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers resident directory step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &directorySteps{tc: tc}

	ctx.Step(`^the directory is empty$`, steps.directoryIsEmpty)
	ctx.Step(`^I add "([^"]*)" aged (\d+) who (lives here|moved away)$`, steps.addPerson)
	ctx.Step(`^the resident count should be (\d+)$`, steps.residentCountShouldBe)
	ctx.Step(`^the status of "([^"]*)" should be "([^"]*)"$`, steps.statusShouldBe)
	ctx.Step(`^the directory should list (\d+) records$`, steps.directoryShouldList)
	ctx.Step(`^the last response status should be (\d+)$`, steps.lastStatusShouldBe)
}

type directorySteps struct {
	tc TestContext
}

func (s *directorySteps) directoryIsEmpty(ctx context.Context) error {
	return s.residentCountShouldBe(ctx, 0)
}

func (s *directorySteps) addPerson(ctx context.Context, name string, age int, status string) error {
	wire := "lives_here"
	if status == "moved away" {
		wire = "moved_away"
	}
	body := map[string]interface{}{"name": name, "age": age, "residency_status": wire}
	if err := s.tc.POST("/residents", body); err != nil {
		return err
	}
	if got := s.tc.GetLastResponseStatus(); got != 201 {
		return fmt.Errorf("add %q: expected 201, got %d: %s", name, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *directorySteps) residentCountShouldBe(ctx context.Context, expected int) error {
	if err := s.tc.GET("/residents/count", nil); err != nil {
		return err
	}
	count, err := s.tc.GetResponseField("count")
	if err != nil {
		return err
	}
	if got, ok := count.(float64); !ok || int(got) != expected {
		return fmt.Errorf("expected count %d, got %v", expected, count)
	}
	return nil
}

func (s *directorySteps) statusShouldBe(ctx context.Context, name, expected string) error {
	if err := s.tc.GET("/residents/status?name="+url.QueryEscape(name), nil); err != nil {
		return err
	}
	msg, err := s.tc.GetResponseField("message")
	if err != nil {
		return err
	}
	if msg != expected {
		return fmt.Errorf("status of %q: expected %q, got %q", name, expected, msg)
	}
	return nil
}

func (s *directorySteps) directoryShouldList(ctx context.Context, expected int) error {
	if err := s.tc.GET("/residents", nil); err != nil {
		return err
	}
	residents, err := s.tc.GetResponseField("residents")
	if err != nil {
		return err
	}
	list, ok := residents.([]interface{})
	if !ok || len(list) != expected {
		return fmt.Errorf("expected %d records, got %v", expected, residents)
	}
	return nil
}

func (s *directorySteps) lastStatusShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.GetLastResponseStatus(); got != expected {
		return fmt.Errorf("expected status %d, got %d", expected, got)
	}
	return nil
}
