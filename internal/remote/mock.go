package remote

import (
	"context"

	"github.com/codebypatrickleung/hvshift/internal/model"
	"github.com/stretchr/testify/mock"
)

// MockExecutor is a testify mock of Executor.
type MockExecutor struct {
	mock.Mock
}

var _ Executor = (*MockExecutor)(nil)

func (m *MockExecutor) Run(ctx context.Context, host, command string) (string, error) {
	args := m.Called(ctx, host, command)
	return args.String(0), args.Error(1)
}

// MockPusher is a testify mock of FilePusher.
type MockPusher struct {
	mock.Mock
}

var _ FilePusher = (*MockPusher)(nil)

func (m *MockPusher) Push(ctx context.Context, host, dir string, scripts []model.HelperScript) error {
	args := m.Called(ctx, host, dir, scripts)
	return args.Error(0)
}
