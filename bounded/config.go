package bounded

import "github.com/google/uuid"
import s "github.com/bnclabs/gosettings"
import "github.com/cloudfoundry/gosigar"

// Defaultsettings for bounded allocators.
//
// "name" (string, default: "")
//		Name of the allocator, used in log messages. A random uuid is
//		generated when left empty.
//
// "budget" (int64, default: <free system memory>)
//		Maximum number of outstanding bytes granted by Accounting.
//
// "histogram.till" (int64, default: 4096)
//		Request sizes are sampled into a histogram, sizes beyond this
//		fall into the last bucket.
//
// "histogram.width" (int64, default: 64)
//		Width of each bucket in the request-size histogram.
func Defaultsettings() s.Settings {
	_, _, free := getsysmem()
	return s.Settings{
		"name":            "",
		"budget":          int64(free),
		"histogram.till":  int64(4096),
		"histogram.width": int64(64),
	}
}

func allocatorname(setts s.Settings) string {
	if name := setts.String("name"); name != "" {
		return name
	}
	return uuid.NewString()
}

func getsysmem() (total, used, free uint64) {
	mem := sigar.Mem{}
	mem.Get()
	return mem.Total, mem.Used, mem.Free
}
