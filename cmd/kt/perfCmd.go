package kt

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tycoon-kv/tycoon/cmd/util"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for servers speaking this dialect",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix  = "__test"
	perfNumThreads = 10
	perfKeySpread  = 100
	perfValueSize  = 64
	perfSkip       = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Parallelism of the benchmark: the number of workers is this value times GOMAXPROCS"))
	key = "value-size"
	perfTestCmd.Flags().Int(key, 64, util.WrapString("Size of the values written by the benchmark (in bytes)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfNumThreads = viper.GetInt("threads")
	perfKeySpread = viper.GetInt("keys")
	perfValueSize = viper.GetInt("value-size")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n\n", perfNumThreads)

	value := strings.Repeat("x", perfValueSize)

	runBench("set", func(caller uint64, counter int) error {
		return client.Caller(caller).Set(perfKey(counter), value, 0)
	})

	runBench("get", func(caller uint64, counter int) error {
		_, _, err := client.Caller(caller).Get(perfKey(counter))
		return err
	})

	runBench("remove", func(caller uint64, counter int) error {
		_, err := client.Caller(caller).Remove(perfKey(counter))
		return err
	})

	return nil
}

// runBench drives one operation from perfNumThreads*GOMAXPROCS parallel
// workers (testing.B.SetParallelism) and prints throughput plus latency
// percentiles
func runBench(name string, op func(caller uint64, counter int) error) {
	if shouldSkip(name) {
		return
	}

	timer := gometrics.NewTimer()

	var nextCaller atomic.Uint64

	result := testing.Benchmark(func(b *testing.B) {
		b.SetParallelism(perfNumThreads)

		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			caller := nextCaller.Add(1)
			counter := 0
			for pb.Next() {
				start := time.Now()
				if err := op(caller, counter); err != nil {
					log.Printf("(%s) - error: %v\n", name, err)
				}
				timer.UpdateSince(start)
				counter++
			}
		})
	})

	fmt.Printf("%-8s %12d ops %12s/op", name, result.N, time.Duration(result.NsPerOp()))
	fmt.Printf("   p50=%s p95=%s p99=%s\n",
		time.Duration(int64(timer.Percentile(0.50))),
		time.Duration(int64(timer.Percentile(0.95))),
		time.Duration(int64(timer.Percentile(0.99))))
}

func perfKey(counter int) string {
	return perfKeyPrefix + "-" + strconv.Itoa(counter%perfKeySpread)
}

func shouldSkip(name string) bool {
	for _, skip := range perfSkip {
		if skip == name {
			return true
		}
	}
	return false
}
