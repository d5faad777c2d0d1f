package inventory

import (
	"context"

	"github.com/codebypatrickleung/hvshift/internal/model"
	"github.com/stretchr/testify/mock"
)

// MockGateway is a testify mock of Gateway.
type MockGateway struct {
	mock.Mock
}

var _ Gateway = (*MockGateway)(nil)

func (m *MockGateway) FindVirtualMachine(ctx context.Context, instanceName string, projectVM bool) (model.VirtualMachine, error) {
	args := m.Called(ctx, instanceName, projectVM)
	return args.Get(0).(model.VirtualMachine), args.Error(1)
}

func (m *MockGateway) FindCluster(ctx context.Context, name string) (model.Cluster, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(model.Cluster), args.Error(1)
}

func (m *MockGateway) ListClusterHosts(ctx context.Context, clusterID string) ([]model.Host, error) {
	args := m.Called(ctx, clusterID)
	hosts, _ := args.Get(0).([]model.Host)
	return hosts, args.Error(1)
}

func (m *MockGateway) FindHostByName(ctx context.Context, name string) (model.Host, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(model.Host), args.Error(1)
}

func (m *MockGateway) FindStoragePool(ctx context.Context, id string) (model.StoragePool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.StoragePool), args.Error(1)
}

func (m *MockGateway) SelectStoragePool(ctx context.Context, clusterID, name string) (model.StoragePool, error) {
	args := m.Called(ctx, clusterID, name)
	return args.Get(0).(model.StoragePool), args.Error(1)
}

func (m *MockGateway) FindTemplate(ctx context.Context, name string) (model.Template, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(model.Template), args.Error(1)
}

func (m *MockGateway) GetServiceOffering(ctx context.Context, id string) (model.ServiceOffering, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.ServiceOffering), args.Error(1)
}

func (m *MockGateway) ListVolumes(ctx context.Context, instanceName string) ([]model.Volume, error) {
	args := m.Called(ctx, instanceName)
	volumes, _ := args.Get(0).([]model.Volume)
	return volumes, args.Error(1)
}

func (m *MockGateway) VolumeAttachmentState(ctx context.Context, volumeID string) (model.PowerState, error) {
	args := m.Called(ctx, volumeID)
	return args.Get(0).(model.PowerState), args.Error(1)
}

func (m *MockGateway) StopVirtualMachine(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) StartVirtualMachine(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CommitMigration(ctx context.Context, commit model.Commit) error {
	return m.Called(ctx, commit).Error(0)
}

func (m *MockGateway) Close() error {
	return m.Called().Error(0)
}
