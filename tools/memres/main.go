package main

import "fmt"
import "flag"
import "os"
import "strconv"

import "github.com/bnclabs/golog"
import "github.com/bnclabs/memres"
import "github.com/bnclabs/memres/bounded"
import "github.com/bnclabs/memres/lib"
import "github.com/bnclabs/memres/malloc"
import "github.com/bnclabs/memres/tracked"
import s "github.com/bnclabs/gosettings"
import hm "github.com/dustin/go-humanize"

var options struct {
	policy   string
	capacity int64
	budget   int64
	align    int64
	sizes    []int64
	scoped   map[int]bool
	settings string
	dump     bool
	loglevel string
}

func argParse() {
	var sizes, scoped string

	flag.StringVar(&options.policy, "policy", "fallback",
		"allocator stack: fallback, accounting or heapcap")
	flag.Int64Var(&options.capacity, "capacity", 10,
		"capacity of the backing arena in bytes")
	flag.Int64Var(&options.budget, "budget", 10,
		"byte budget for accounting and heapcap policies")
	flag.Int64Var(&options.align, "align", 1,
		"alignment for every object")
	flag.StringVar(&sizes, "sizes", "1,1,4,1,2,1,1,4",
		"object sizes, allocated in the given order")
	flag.StringVar(&scoped, "scoped", "1,3",
		"index of objects released right after they are allocated")
	flag.StringVar(&options.settings, "settings", "",
		"yaml file of stack settings, flags override them")
	flag.BoolVar(&options.dump, "dump", false,
		"hexdump every live object")
	flag.StringVar(&options.loglevel, "loglevel", "info",
		"log level")
	flag.Parse()

	var err error
	if options.sizes, err = lib.Parsesizes(sizes); err != nil {
		fmt.Printf("invalid -sizes %q: %v\n", sizes, err)
		os.Exit(1)
	}
	options.scoped = make(map[int]bool)
	for _, x := range lib.Parsecsv(scoped) {
		n, err := strconv.Atoi(x)
		if err != nil {
			fmt.Printf("invalid -scoped %q: %v\n", scoped, err)
			os.Exit(1)
		}
		options.scoped[n] = true
	}
}

func main() {
	argParse()

	log.SetLogger(nil, map[string]interface{}{
		"log.level": options.loglevel,
		"log.file":  "",
	})
	malloc.LogComponents("all")
	bounded.LogComponents("all")

	setts, err := stacksettings()
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	stack := memres.NewStack(setts)
	defer stack.Release()

	evlog := bounded.NewEventlog()
	stack.SetRecorder(bounded.Tee{bounded.Logrecorder{}, evlog})

	live, err := runsequence(stack)
	for _, line := range evlog.Lines() {
		fmt.Println(line)
	}
	if err != nil {
		fmt.Printf("sequence stopped after %v objects: %v\n", len(live), err)
	}
	if options.dump {
		dumpobjects(live)
	}
	for i := len(live) - 1; i >= 0; i-- {
		if err := live[i].Close(); err != nil {
			fmt.Printf("closing object %v: %v\n", i, err)
		}
	}

	fmt.Println(lib.Prettystats(stack.Stats(), true))
	stack.Log(true)
}

// runsequence allocate objects in order, scoped objects are released
// right away, rest are returned live. Stops at the first failure.
func runsequence(stack *memres.Stack) ([]*tracked.Object, error) {
	alloc, align := stack.Allocator(), stack.Alignment()
	live := make([]*tracked.Object, 0, len(options.sizes))
	for i, size := range options.sizes {
		obj, err := tracked.Newaligned(alloc, size, align)
		if err != nil {
			return live, fmt.Errorf("object %v of %v bytes: %w", i, hm.Bytes(uint64(size)), err)
		}
		fill(obj, byte(i))
		if options.scoped[i] {
			if err := obj.Close(); err != nil {
				return live, err
			}
			continue
		}
		live = append(live, obj)
	}
	return live, nil
}

func fill(obj *tracked.Object, b byte) {
	data := make([]byte, obj.Size())
	for i := range data {
		data[i] = 'a' + b
	}
	obj.Copyin(0, data)
}

func dumpobjects(live []*tracked.Object) {
	for i, obj := range live {
		fmt.Printf("object %v %v\n", i, obj)
		fmt.Print(obj.Dump())
	}
}

func stacksettings() (s.Settings, error) {
	setts := make(s.Settings)
	if options.settings != "" {
		filesetts, err := loadsettings(options.settings)
		if err != nil {
			return nil, err
		}
		setts = setts.Mixin(filesetts)
	}
	flagsetts := s.Settings{
		"policy":         options.policy,
		"arena.capacity": options.capacity,
		"budget":         options.budget,
		"alignment":      options.align,
	}
	flagnames := map[string]string{
		"policy": "policy", "capacity": "arena.capacity",
		"budget": "budget", "align": "alignment",
	}
	// without a settings file flag defaults apply, otherwise only
	// flags given on the command line override the file.
	if options.settings == "" {
		return setts.Mixin(flagsetts), nil
	}
	flag.Visit(func(f *flag.Flag) {
		if key, ok := flagnames[f.Name]; ok {
			setts[key] = flagsetts[key]
		}
	})
	return setts, nil
}
