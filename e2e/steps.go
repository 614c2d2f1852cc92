package e2e

import (
	"github.com/cucumber/godog"

	"residents/e2e/steps/directory"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	directory.RegisterSteps(ctx, tc)
}
