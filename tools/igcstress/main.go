package main

import "flag"
import "fmt"
import "io/ioutil"
import "log"
import "sync"
import "time"

import s "github.com/bnclabs/gosettings"
import hm "github.com/dustin/go-humanize"

import "github.com/bnclabs/goigc"
import "github.com/bnclabs/goigc/api"

var options struct {
	par      int
	gen0     int
	gen1     int
	idle     int
	prodfile string
	ops      string
}

func argParse() {
	flag.IntVar(&options.par, "par", 2,
		"number of concurrent mutator threads")
	flag.IntVar(&options.gen0, "gen0", 1024,
		"nursery capacity in KB")
	flag.IntVar(&options.gen1, "gen1", 8192,
		"old generation capacity in KB")
	flag.IntVar(&options.idle, "idle", 5,
		"milliseconds between idle ticks")
	flag.StringVar(&options.prodfile, "prodfile", "",
		"workload production file")
	flag.StringVar(&options.ops, "ops", "cons 100000; symbol 1000; bind 1000",
		"inline workload production, ignored with -prodfile")
	flag.Parse()
}

func main() {
	argParse()

	text := options.ops
	if options.prodfile != "" {
		data, err := ioutil.ReadFile(options.prodfile)
		if err != nil {
			log.Fatalf("reading %v: %v", options.prodfile, err)
		}
		text = string(data)
	}
	workload, err := parseworkload(text)
	if err != nil {
		log.Fatalf("parsing workload: %v", err)
	}

	setts := s.Settings{
		"gen0.capacity": int64(options.gen0),
		"gen1.capacity": int64(options.gen1),
	}
	gc := igc.Init(setts)
	defer gc.Close()

	stop := make(chan struct{})
	var idlewg sync.WaitGroup
	idlewg.Add(1)
	go func() {
		defer idlewg.Done()
		tick := time.NewTicker(time.Duration(options.idle) * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				gc.OnIdle()
			case <-stop:
				return
			}
		}
	}()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < options.par; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runworkload(gc, id, workload)
		}(i)
	}
	wg.Wait()
	close(stop)
	idlewg.Wait()

	elapsed := time.Since(start)
	capacity, heap, alloc, overhead := gc.Arena().Info()
	fmt.Printf("%v mutators finished in %v\n", options.par, elapsed)
	fmt.Printf("capacity: %v, heap: %v, alloc: %v, overhead: %v\n",
		hm.Bytes(uint64(capacity)), hm.Bytes(uint64(heap)),
		hm.Bytes(uint64(alloc)), hm.Bytes(uint64(overhead)))
	for key, value := range gc.Arena().Stats() {
		fmt.Printf("%v: %v\n", key, value)
	}
}

// runworkload execute the parsed productions on a fresh thread.
func runworkload(gc *igc.IGC, id int, workload []production) {
	t := gc.ThreadAdd()
	defer gc.ThreadRemove(t)

	t.Push(igc.Nil) // accumulator register
	for _, prod := range workload {
		switch prod.verb {
		case "cons":
			for i := 0; i < prod.count; i++ {
				cons := t.MakeCons(api.MakeFixnum(int64(i)), t.Top(0))
				t.Pop()
				t.Push(cons)
			}
		case "symbol":
			for i := 0; i < prod.count; i++ {
				sym := t.AllocSymbol()
				gc.SetSymbolValue(sym, t.Top(0))
			}
		case "bind":
			for i := 0; i < prod.count; i++ {
				t.PushBinding(igc.Nil, api.MakeFixnum(int64(i)))
			}
			for i := 0; i < prod.count; i++ {
				t.PopBinding()
			}
		case "idle":
			for i := 0; i < prod.count; i++ {
				gc.OnIdle()
			}
		}
	}
	t.Pop()
}
