//go:build linux
// +build linux

package runtime

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseContainerID(t *testing.T) {
	testcases := []struct {
		name   string
		cgroup string
		id     string
	}{
		{
			name:   "containerd in kubernetes",
			cgroup: "0::/kubepods.slice/kubepods-besteffort.slice/kubepods-besteffort-pode6ac4a8d_1076_453e_9ddb_3976520e3178.slice/cri-containerd-19cd7a809d879d9c855bb93e4d399efe795a769ac856faaa5256cdd8387fe4b1.scope",
			id:     "19cd7a809d879d9c855bb93e4d399efe795a769ac856faaa5256cdd8387fe4b1",
		},
		{
			name:   "docker",
			cgroup: "12:cpu,cpuacct:/docker/3f4a5b6c7d8e9f0a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a",
			id:     "3f4a5b6c7d8e9f0a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a",
		},
		{
			name:   "ecs task",
			cgroup: "9:perf_event:/ecs/task/0123456789abcdef0123456789abcdef-1234",
			id:     "0123456789abcdef0123456789abcdef-1234",
		},
		{
			name:   "host",
			cgroup: "0::/user.slice/user-1000.slice/session-2.scope\nbad line",
			id:     "",
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			require.Equal(tt, tc.id, parseContainerID(strings.NewReader(tc.cgroup)))
		})
	}
}

func TestIsRunningAtDockerByPaths(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, ".dockerenv")
	block := filepath.Join(dir, "block")
	missing := filepath.Join(dir, "missing")

	// No marker and no block devices.
	require.True(t, isRunningAtDocker(missing, missing))

	require.NoError(t, os.Mkdir(block, 0o755))
	require.False(t, isRunningAtDocker(missing, block))

	require.NoError(t, os.WriteFile(marker, nil, 0o644))
	require.True(t, isRunningAtDocker(marker, block))
	// A directory is not the marker.
	require.False(t, isRunningAtDocker(block, block))
}

func TestIsRunningAtKubernetesByPath(t *testing.T) {
	dir := t.TempDir()
	ns := filepath.Join(dir, "namespace")
	require.False(t, isRunningAtKubernetes(ns))

	require.NoError(t, os.WriteFile(ns, nil, 0o644))
	require.False(t, isRunningAtKubernetes(ns))

	require.NoError(t, os.WriteFile(ns, []byte("default"), 0o644))
	require.True(t, isRunningAtKubernetes(ns))
	require.False(t, isRunningAtKubernetes(dir))
}
