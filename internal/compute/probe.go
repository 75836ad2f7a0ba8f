package compute

import (
	"bufio"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// BackendInfo is one probed backend with its reported free memory.
// FreeMemMB of 0 means the probe could not determine a figure.
type BackendInfo struct {
	Backend   Backend
	FreeMemMB int
}

// Prober reports the acceleration backends available on this host.
// Implementations must be cheap enough to call once per pipeline request.
type Prober interface {
	Probe() []BackendInfo
}

// HostProber inspects the running host. CUDA is detected through nvidia-smi,
// Metal through the platform triple, and CPU is always present.
type HostProber struct{}

func NewHostProber() *HostProber { return &HostProber{} }

func (p *HostProber) Probe() []BackendInfo {
	var out []BackendInfo
	if mb, ok := cudaFreeMB(); ok {
		out = append(out, BackendInfo{Backend: BackendCUDA, FreeMemMB: mb})
	}
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		// Unified memory: the accelerator shares system RAM.
		out = append(out, BackendInfo{Backend: BackendMetal, FreeMemMB: systemFreeMB()})
	}
	out = append(out, BackendInfo{Backend: BackendCPU, FreeMemMB: systemFreeMB()})
	return out
}

// cudaFreeMB queries nvidia-smi for the first GPU's free memory.
func cudaFreeMB() (int, bool) {
	bin, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return 0, false
	}
	b, err := exec.Command(bin, "--query-gpu=memory.free", "--format=csv,noheader,nounits").Output()
	if err != nil {
		return 0, false
	}
	line := strings.TrimSpace(strings.SplitN(string(b), "\n", 2)[0])
	mb, err := strconv.Atoi(line)
	if err != nil {
		// Device present but unparsable output; report it with unknown memory.
		return 0, true
	}
	return mb, true
}

// systemFreeMB reads MemAvailable from /proc/meminfo. Returns 0 when the
// figure is unavailable (non-Linux hosts without a better probe).
func systemFreeMB() int {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0
		}
		return kb / 1024
	}
	return 0
}
