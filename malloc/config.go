package malloc

import "fmt"

import "github.com/bnclabs/memres/api"
import s "github.com/bnclabs/gosettings"

// MEMUtilization is the ratio between memory requested by application
// and chunk memory handed out by a pool.
const MEMUtilization = float64(0.95)

// Sizeinterval chunk sizes from Sizeinterval upwards are multiples of
// Sizeinterval.
const Sizeinterval = int64(8)

// Maxarenasize maximum size of a memory arena.
const Maxarenasize = int64(1024 * 1024 * 1024 * 1024)

// Defaultcapacity for an arena, can be overridden by settings.
const Defaultcapacity = int64(64 * 1024 * 1024)

// Maxpools maximum number of size classes allowed in a pool.
const Maxpools = int64(512)

// Maxchunks maximum number of chunks carved out of a single slab.
const Maxchunks = int64(65536)

// Defaultsettings for arena and pool.
//
// "capacity" (int64, default: <Defaultcapacity>)
//		Size of the arena in bytes, memory is reserved upfront.
//
// "overflow" (string, default: "reject")
//		What arena shall do with requests that don't fit, can be
//		"reject" or "heap".
//
// "minblock" (int64, default: <Sizeinterval>)
//		Smallest chunk size managed by pool. Below Sizeinterval
//		pool keeps a size class for every byte.
//
// "maxblock" (int64, default: 4096)
//		Largest chunk size managed by pool, bigger requests are
//		passed through to pool's upstream.
//
// "maxchunks" (int64, default: 1024)
//		Upper limit on number of chunks carved out of a single slab.
func Defaultsettings() s.Settings {
	return s.Settings{
		"capacity":  Defaultcapacity,
		"overflow":  "reject",
		"minblock":  Sizeinterval,
		"maxblock":  int64(4096),
		"maxchunks": int64(1024),
	}
}

func overflowallocator(setts s.Settings) api.Allocator {
	switch overflow := setts.String("overflow"); overflow {
	case "reject":
		return NewSink()
	case "heap":
		return NewHeap()
	default:
		panic(fmt.Errorf("invalid overflow %q", overflow))
	}
}
