package hypervisor

import (
	"context"

	"github.com/codebypatrickleung/hvshift/internal/model"
	"github.com/stretchr/testify/mock"
)

// MockSource is a testify mock of SourcePlatform.
type MockSource struct {
	mock.Mock
}

var _ SourcePlatform = (*MockSource)(nil)

func (m *MockSource) Name() string { return "MockSource" }

func (m *MockSource) PrepareExportArea(ctx context.Context, host model.Host) error {
	return m.Called(ctx, host).Error(0)
}

func (m *MockSource) RequestTransferURL(ctx context.Context, volumeID string, host model.Host) (string, error) {
	args := m.Called(ctx, volumeID, host)
	return args.String(0), args.Error(1)
}

// MockTarget is a testify mock of TargetPlatform.
type MockTarget struct {
	mock.Mock
}

var _ TargetPlatform = (*MockTarget)(nil)

func (m *MockTarget) Name() string { return "MockTarget" }

func (m *MockTarget) ResolveMountPoint(ctx context.Context, host model.Host) (string, error) {
	args := m.Called(ctx, host)
	return args.String(0), args.Error(1)
}

func (m *MockTarget) EnsureMigrationDirectory(ctx context.Context, host model.Host) error {
	return m.Called(ctx, host).Error(0)
}

func (m *MockTarget) Fetch(ctx context.Context, host model.Host, url, name string) error {
	return m.Called(ctx, host, url, name).Error(0)
}

func (m *MockTarget) ConvertToNativeFormat(ctx context.Context, host model.Host, name string) error {
	return m.Called(ctx, host, name).Error(0)
}

func (m *MockTarget) GrowPartition(ctx context.Context, host model.Host, name string, paddingBytes int64) error {
	return m.Called(ctx, host, name, paddingBytes).Error(0)
}

func (m *MockTarget) InjectDrivers(ctx context.Context, host model.Host, name string) error {
	return m.Called(ctx, host, name).Error(0)
}

func (m *MockTarget) Place(ctx context.Context, host model.Host, name string, injected bool) error {
	return m.Called(ctx, host, name, injected).Error(0)
}

func (m *MockTarget) PushHelperScripts(ctx context.Context, host model.Host, scripts []model.HelperScript) error {
	return m.Called(ctx, host, scripts).Error(0)
}
