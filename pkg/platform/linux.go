//go:build linux

package platform

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/DrSkyle/sbh/pkg/core"
)

// pseudoFS lists filesystem types that are not candidates for pressure
// monitoring. RAM-backed types (tmpfs, ramfs) are intentionally absent: they
// are real mounts for our purposes.
var pseudoFS = map[string]bool{
	"sysfs": true, "proc": true, "devtmpfs": true, "devpts": true,
	"cgroup": true, "cgroup2": true, "debugfs": true, "tracefs": true,
	"securityfs": true, "hugetlbfs": true, "mqueue": true, "fusectl": true,
	"configfs": true, "pstore": true, "bpf": true, "rpc_pipefs": true,
	"nsfs": true, "autofs": true, "efivarfs": true, "squashfs": true,
	"iso9660": true, "overlay": true, "binfmt_misc": true,
}

var ramBackedFS = map[string]bool{
	"tmpfs": true, "ramfs": true,
}

// LinuxPlatform implements Platform against /proc and statfs.
type LinuxPlatform struct {
	mountsPath  string
	meminfoPath string
}

// NewLinuxPlatform returns the production Linux implementation.
func NewLinuxPlatform() *LinuxPlatform {
	return &LinuxPlatform{mountsPath: "/proc/mounts", meminfoPath: "/proc/meminfo"}
}

func (p *LinuxPlatform) FsStats(path string) (FsStats, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return FsStats{}, core.FsStats(path, err)
	}
	bsize := uint64(stat.Bsize)
	stats := FsStats{
		Path:           path,
		TotalBytes:     stat.Blocks * bsize,
		FreeBytes:      stat.Bfree * bsize,
		AvailableBytes: stat.Bavail * bsize,
		FsType:         fsTypeName(int64(stat.Type)),
		ObservedAt:     time.Now(),
	}
	return stats, nil
}

func (p *LinuxPlatform) MountPoints() ([]MountPoint, error) {
	f, err := os.Open(p.mountsPath)
	if err != nil {
		return nil, core.MountParse(err.Error())
	}
	defer f.Close()

	seenDevice := make(map[string]bool)
	var mounts []MountPoint

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		device, mountPoint, fsType := fields[0], fields[1], fields[2]
		if pseudoFS[fsType] {
			continue
		}
		ramBacked := ramBackedFS[fsType] || mountPoint == "/dev/shm"
		// Block devices are deduplicated (bind mounts); RAM mounts are
		// all distinct pools.
		if !ramBacked {
			if !strings.HasPrefix(device, "/") {
				continue
			}
			if seenDevice[device] {
				continue
			}
			seenDevice[device] = true
		}
		mounts = append(mounts, MountPoint{
			Path:        unescapeMountPath(mountPoint),
			Device:      device,
			FsType:      fsType,
			IsRAMBacked: ramBacked,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, core.MountParse(err.Error())
	}
	return mounts, nil
}

func (p *LinuxPlatform) IsRAMBacked(path string) (bool, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return false, core.FsStats(path, err)
	}
	switch stat.Type {
	case unix.TMPFS_MAGIC, unix.RAMFS_MAGIC:
		return true, nil
	}
	return strings.HasPrefix(path, "/dev/shm"), nil
}

func (p *LinuxPlatform) MemoryInfo() (MemoryInfo, error) {
	f, err := os.Open(p.meminfoPath)
	if err != nil {
		return MemoryInfo{}, core.FsStats(p.meminfoPath, err)
	}
	defer f.Close()

	var info MemoryInfo
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		bytes := kb * 1024
		switch strings.TrimSuffix(fields[0], ":") {
		case "MemTotal":
			info.TotalBytes = bytes
		case "MemAvailable":
			info.AvailableBytes = bytes
		case "SwapTotal":
			info.SwapTotalBytes = bytes
		case "SwapFree":
			info.SwapFreeBytes = bytes
		}
	}
	return info, scanner.Err()
}

// unescapeMountPath decodes the octal escapes /proc/mounts uses for spaces
// and tabs in mount paths.
func unescapeMountPath(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	replacer := strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`)
	return replacer.Replace(s)
}

func fsTypeName(magic int64) string {
	switch magic {
	case unix.EXT4_SUPER_MAGIC:
		return "ext4"
	case unix.BTRFS_SUPER_MAGIC:
		return "btrfs"
	case unix.XFS_SUPER_MAGIC:
		return "xfs"
	case unix.TMPFS_MAGIC:
		return "tmpfs"
	case unix.RAMFS_MAGIC:
		return "ramfs"
	case unix.OVERLAYFS_SUPER_MAGIC:
		return "overlay"
	default:
		return "unknown"
	}
}
