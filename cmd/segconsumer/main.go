// Command segconsumer is the reference consumer CLI (spec.md §6): it
// fetches every segment of one named object over UDP, verifies the
// hash-chain, and writes the reassembled content to stdout.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ndnchain/hcfetch/face"
	"github.com/ndnchain/hcfetch/fetcher"
	"github.com/ndnchain/hcfetch/internal/config"
	"github.com/ndnchain/hcfetch/ndn"
	"github.com/ndnchain/hcfetch/rtt"
	"github.com/ndnchain/hcfetch/security"
	"github.com/ndnchain/hcfetch/validator"
)

var (
	verbose         bool
	strictHashChain bool
	endpoint        string
	configPath      string
	metricsAddr     string
)

func main() {
	root := &cobra.Command{
		Use:   "segconsumer [flags] ndn-name",
		Short: "Fetch a hash-chain segmented object and print its content",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
	flags := root.Flags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	flags.BoolVarP(&strictHashChain, "strict-hash-chain", "h", false, "reject any out-of-order segment instead of relying on the anchored-count heuristic")
	flags.StringVarP(&endpoint, "endpoint", "e", "", "producer UDP address (overrides config)")
	flags.StringVar(&configPath, "config", "", "path to a YAML defaults file")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "optional Prometheus /metrics listen address")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(_ *cobra.Command, args []string) error {
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if endpoint == "" {
		endpoint = cfg.Endpoint
	}
	if metricsAddr == "" {
		metricsAddr = cfg.MetricsAddr
	}

	remoteAddr, err := net.ResolveUDPAddr("udp", endpoint)
	if err != nil {
		return fmt.Errorf("resolving endpoint %q: %w", endpoint, err)
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return fmt.Errorf("opening UDP socket: %w", err)
	}
	defer conn.Close()

	segmentsFetched := promauto.NewCounter(prometheus.CounterOpts{
		Name: "segconsumer_segments_fetched_total",
		Help: "Segments successfully validated and buffered.",
	})
	retransmits := promauto.NewCounter(prometheus.CounterOpts{
		Name: "segconsumer_retransmits_total",
		Help: "Segments that timed out and were retransmitted.",
	})
	cwndGauge := promauto.NewGauge(prometheus.GaugeOpts{
		Name: "segconsumer_cwnd",
		Help: "Current congestion window size.",
	})
	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			_ = http.ListenAndServe(metricsAddr, mux)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reactor := face.NewGoReactor()
	go reactor.Run(ctx)

	f := face.NewUDPFace(conn, reactor)
	f.SetDefaultRemote(remoteAddr)
	f.Listen(ctx)

	keys, err := keyResolverForEndpoint()
	if err != nil {
		return err
	}
	v := fetcher.NewSyncValidatorAdapter(validator.NewECDSAValidator(keys), reactor)

	opts := fetcher.DefaultOptions()
	opts.StrictHashChain = strictHashChain

	done := make(chan struct{})
	var result []byte
	var fetchErr *fetcher.FetchError

	ft := fetcher.Start(ctx, f, ndn.NameFromString(args[0]), v, rtt.NewJacobsonEstimator(), opts)
	ft.AfterSegmentValidated.Connect(func(ndn.Data) { segmentsFetched.Inc() })
	ft.AfterSegmentTimedOut.Connect(func(uint64) { retransmits.Inc() })
	ft.OnComplete.Connect(func(b []byte) { result = b; close(done) })
	ft.OnError.Connect(func(e *fetcher.FetchError) { fetchErr = e; close(done) })

	if metricsAddr != "" {
		cwndTicker := time.NewTicker(200 * time.Millisecond)
		defer cwndTicker.Stop()
		go func() {
			for range cwndTicker.C {
				reactor.Post(func() { cwndGauge.Set(ft.CwndSize()) })
			}
		}()
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if fetchErr != nil {
		return fmt.Errorf("fetch failed: %s", fetchErr)
	}
	logrus.WithField("size", humanize.Bytes(uint64(len(result)))).Debug("fetch complete")
	_, err = os.Stdout.Write(result)
	return err
}

// keyResolverForEndpoint loads the producer's known public key. The
// reference CLIs share an out-of-band trust model (spec.md's Non-goals
// exclude certificate fetch) — in this minimal demo the consumer has no
// independent key material of its own and always resolves against the
// producer's default-identity key store directory sitting next to it.
func keyResolverForEndpoint() (validator.KeyResolver, error) {
	ks := security.NewFileKeyStore(defaultKeyDir(), "default")
	id, err := ks.Default()
	if err != nil {
		return nil, fmt.Errorf("loading trust anchor: %w", err)
	}
	return validator.StaticKeyResolver{id.Name: &id.PrivateKey.PublicKey}, nil
}

func defaultKeyDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".hcfetch-keys"
	}
	return dir + "/hcfetch/keys"
}
