package alsa

import (
	"syscall"
	"unsafe"
)

// ioctl performs a generic ioctl syscall.
func ioctl(fd uintptr, req uintptr, arg uintptr) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, req, arg)
	if errno != 0 {
		return errno
	}

	return nil
}

const (
	iocNrbits    = 8
	iocTypebits  = 8
	iocSizebits  = 14
	iocNrshift   = 0
	iocTypeshift = iocNrshift + iocNrbits
	iocSizeshift = iocTypeshift + iocTypebits
	iocDirshift  = iocSizeshift + iocSizebits

	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

// ioc builds an ioctl request code the way the _IOC macro from the kernel headers does.
func ioc(dir, typ, nr, size uintptr) uintptr {
	return (dir << iocDirshift) | (typ << iocTypeshift) | (nr << iocNrshift) | (size << iocSizeshift)
}

// io builds an ioctl request code for a command with no data transfer.
func io(typ, nr uintptr) uintptr {
	return ioc(iocNone, typ, nr, 0)
}

// ior builds a read-only ioctl request code.
func ior(typ, nr, size uintptr) uintptr {
	return ioc(iocRead, typ, nr, size)
}

// iowr builds a read-write ioctl request code.
func iowr(typ, nr, size uintptr) uintptr {
	return ioc(iocRead|iocWrite, typ, nr, size)
}

var (
	// PCM IOCTLs
	SNDRV_PCM_IOCTL_INFO      uintptr
	SNDRV_PCM_IOCTL_HW_REFINE uintptr
	SNDRV_PCM_IOCTL_HW_PARAMS uintptr
	SNDRV_PCM_IOCTL_HW_FREE   uintptr
	SNDRV_PCM_IOCTL_SW_PARAMS uintptr
	SNDRV_PCM_IOCTL_HWSYNC    uintptr
	SNDRV_PCM_IOCTL_SYNC_PTR  uintptr
	SNDRV_PCM_IOCTL_PREPARE   uintptr
	SNDRV_PCM_IOCTL_START     uintptr
	SNDRV_PCM_IOCTL_DROP      uintptr
	SNDRV_PCM_IOCTL_DRAIN     uintptr
	SNDRV_PCM_IOCTL_RESUME    uintptr

	// Control IOCTLs
	SNDRV_CTL_IOCTL_CARD_INFO       uintptr
	SNDRV_CTL_IOCTL_PCM_NEXT_DEVICE uintptr
	SNDRV_CTL_IOCTL_PCM_INFO        uintptr
)

func init() {
	// PCM IOCTLs ('A' for ALSA)
	SNDRV_PCM_IOCTL_INFO = ior('A', 0x01, unsafe.Sizeof(sndPcmInfo{}))
	SNDRV_PCM_IOCTL_HW_REFINE = iowr('A', 0x10, unsafe.Sizeof(sndPcmHwParams{}))
	SNDRV_PCM_IOCTL_HW_PARAMS = iowr('A', 0x11, unsafe.Sizeof(sndPcmHwParams{}))
	SNDRV_PCM_IOCTL_HW_FREE = io('A', 0x12)
	SNDRV_PCM_IOCTL_SW_PARAMS = iowr('A', 0x13, unsafe.Sizeof(sndPcmSwParams{}))

	// Synchronization IOCTLs
	SNDRV_PCM_IOCTL_HWSYNC = io('A', 0x22)
	SNDRV_PCM_IOCTL_SYNC_PTR = iowr('A', 0x23, unsafe.Sizeof(sndPcmSyncPtr{}))

	// State change IOCTLs
	SNDRV_PCM_IOCTL_PREPARE = io('A', 0x40)
	SNDRV_PCM_IOCTL_START = io('A', 0x42)
	SNDRV_PCM_IOCTL_DROP = io('A', 0x43)
	SNDRV_PCM_IOCTL_DRAIN = io('A', 0x44)
	SNDRV_PCM_IOCTL_RESUME = io('A', 0x47)

	// Control IOCTLs ('U' for UAC)
	SNDRV_CTL_IOCTL_CARD_INFO = ior('U', 0x01, unsafe.Sizeof(sndCtlCardInfo{}))
	SNDRV_CTL_IOCTL_PCM_NEXT_DEVICE = ior('U', 0x30, unsafe.Sizeof(int32(0)))
	SNDRV_CTL_IOCTL_PCM_INFO = iowr('U', 0x31, unsafe.Sizeof(sndPcmInfo{}))
}
