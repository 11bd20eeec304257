//go:build linux
// +build linux

package runtime

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
)

// A container env has the '/.dockerenv' marker file (unstable) or no
// '/dev/block' devices (stable).
const (
	dockerEnvPath                = "/.dockerenv"
	dockerBlockPath              = "/dev/block"
	kubernetesServiceAccountPath = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"
	procSelfCgroupPath           = "/proc/self/cgroup"
)

func IsRunningAtDocker() bool {
	return isRunningAtDocker(dockerEnvPath, dockerBlockPath)
}

func isRunningAtDocker(envPath, blockPath string) bool {
	stat, err := os.Stat(envPath)
	if err == nil {
		return !stat.IsDir()
	}
	if !os.IsNotExist(err) {
		return false
	}
	_, err = os.Stat(blockPath)
	return err != nil && os.IsNotExist(err)
}

func IsRunningAtKubernetes() bool {
	return isRunningAtKubernetes(kubernetesServiceAccountPath)
}

func isRunningAtKubernetes(namespacePath string) bool {
	stat, err := os.Stat(namespacePath)
	if err != nil {
		return false
	}
	return !stat.IsDir() && stat.Size() > 0
}

const (
	uuidSource      = "[0-9a-f]{8}[-_][0-9a-f]{4}[-_][0-9a-f]{4}[-_][0-9a-f]{4}[-_][0-9a-f]{12}|[0-9a-f]{8}(?:-[0-9a-f]{4}){4}$"
	containerSource = "[0-9a-f]{64}"
	taskSource      = "[0-9a-f]{32}-\\d+"
)

var (
	// /proc/self/cgroup line example:
	// 0::/kubepods.slice/kubepods-besteffort.slice/kubepods-besteffort-pode6ac4a8d_1076_453e_9ddb_3976520e3178.slice/cri-containerd-19cd7a809d879d9c855bb93e4d399efe795a769ac856faaa5256cdd8387fe4b1.scope
	procSelfCgroupLineRegex = regexp.MustCompile(`^\d+:[^:]*:(.+)$`)
	containerIDRegex        = regexp.MustCompile(fmt.Sprintf(`(%s|%s|%s)(?:.scope)?$`, uuidSource, containerSource, taskSource))
)

func parseContainerID(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		path := procSelfCgroupLineRegex.FindStringSubmatch(scanner.Text())
		if len(path) != 2 {
			continue
		}
		if parts := containerIDRegex.FindStringSubmatch(path[1]); len(parts) == 2 {
			return parts[1]
		}
	}
	return ""
}

// LoadContainerID returns empty on the host or without the cgroup file.
func LoadContainerID() string {
	f, err := os.Open(procSelfCgroupPath)
	if err != nil {
		return ""
	}
	defer f.Close()
	return parseContainerID(f)
}
