// Package orchestratormock has mocks for the orchestrator dependencies.
package orchestratormock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/pagesmith/internal/generation"
	"github.com/slok/pagesmith/internal/model"
	"github.com/slok/pagesmith/internal/report"
)

// MockGenerator is a mock implementation of generation.Generator.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string, history []model.Message) (*generation.Result, error) {
	args := m.Called(ctx, prompt, history)
	var r *generation.Result
	if v := args.Get(0); v != nil {
		r = v.(*generation.Result)
	}
	return r, args.Error(1)
}

// MockProvisionForge is a mock implementation of orchestrator.ProvisionForge.
type MockProvisionForge struct {
	mock.Mock
}

func (m *MockProvisionForge) CreateRepo(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockProvisionForge) RepoExists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockProvisionForge) EnablePages(ctx context.Context, repo, branch string) error {
	args := m.Called(ctx, repo, branch)
	return args.Error(0)
}

// MockPublisher is a mock implementation of orchestrator.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, repo string, files model.FileSet, round model.Round) (*model.PublishReport, error) {
	args := m.Called(ctx, repo, files, round)
	var r *model.PublishReport
	if v := args.Get(0); v != nil {
		r = v.(*model.PublishReport)
	}
	return r, args.Error(1)
}

// MockConfirmer is a mock implementation of orchestrator.Confirmer.
type MockConfirmer struct {
	mock.Mock
}

func (m *MockConfirmer) AwaitCommit(ctx context.Context, repo, branch string) (string, error) {
	args := m.Called(ctx, repo, branch)
	return args.String(0), args.Error(1)
}

// MockReporter is a mock implementation of report.Reporter.
type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) Report(ctx context.Context, callbackURL string, result model.DeploymentResult) report.Outcome {
	args := m.Called(ctx, callbackURL, result)
	return args.Get(0).(report.Outcome)
}
