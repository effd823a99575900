package archive

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/windows"
)

// DiskUsage reports the total and free bytes of the volume holding
// path.
func DiskUsage(path string) (total, free uint64, err error) {
	drive := filepath.VolumeName(path)
	if drive == "" {
		return 0, 0, fmt.Errorf("invalid path: %s", path)
	}

	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	err = windows.GetDiskFreeSpaceEx(
		windows.StringToUTF16Ptr(drive),
		&freeBytesAvailable,
		&totalBytes,
		&totalFreeBytes,
	)
	if err != nil {
		return 0, 0, err
	}

	return totalBytes, freeBytesAvailable, nil
}
