package runtime

// Env is where the process is running.
type Env uint8

const (
	HostEnv Env = iota
	DockerEnv
	KubernetesEnv
)

func (e Env) String() string {
	switch e {
	case DockerEnv:
		return "docker"
	case KubernetesEnv:
		return "kubernetes"
	default:
		return "host"
	}
}

// DetectEnv prefers kubernetes, a pod runs inside a container too.
func DetectEnv() Env {
	if IsRunningAtKubernetes() {
		return KubernetesEnv
	}
	if IsRunningAtDocker() {
		return DockerEnv
	}
	return HostEnv
}
