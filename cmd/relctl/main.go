package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"example.com/relgate/internal/common"
	"example.com/relgate/internal/crypto"
	"example.com/relgate/internal/manifest"
	"example.com/relgate/internal/report"
	"example.com/relgate/internal/update"
	"example.com/relgate/internal/validate"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	switch cmd {
	case "keygen":
		keygenCmd(os.Args[2:])
	case "manifest":
		manifestCmd(os.Args[2:])
	case "validate":
		validateCmd(os.Args[2:])
	case "install":
		installCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Printf(`relctl %s (built %s) <command> [options]

Commands:
  keygen    --private <key.pem> --public <key.pub.pem> [--bits <n>]
  manifest  --payload <dir> --version <v> --out <manifest.json> [--sign --key <key.pem>] [--concurrency <n>] [--progress] [--metrics]
  validate  --zip <payload.zip> --manifest <manifest.json> --public-key <key.pub.pem> [--strict] [--report <report.json>] [--findings <findings.ndjson>] [--pdf <report.pdf>] [--lang en|de] [--concurrency <n>] [--progress] [--metrics]
  install   --zip <payload.zip> --manifest <manifest.json> --public-key <key.pub.pem> --root <install-root> [--strict] [--concurrency <n>]
  report    --in <report.json> --pdf <report.pdf> [--lang en|de]
`, version, buildDate)
}

func keygenCmd(args []string) {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	privPath := fs.String("private", "signing.key.pem", "private key output")
	pubPath := fs.String("public", "signing.pub.pem", "public key output")
	bits := fs.Int("bits", crypto.DefaultKeyBits, "RSA modulus size")
	fs.Parse(args)

	priv, err := crypto.GenerateKeyPair(*bits)
	if err != nil {
		fmt.Println("generate key:", err)
		os.Exit(2)
	}
	if err := crypto.WriteKeyPair(priv, *privPath, *pubPath); err != nil {
		fmt.Println("write keys:", err)
		os.Exit(2)
	}
	fmt.Printf("wrote %s and %s (%d bit)\n", *privPath, *pubPath, priv.N.BitLen())
}

func manifestCmd(args []string) {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	payload := fs.String("payload", "", "payload directory")
	ver := fs.String("version", "", "release version")
	out := fs.String("out", "manifest.json", "manifest output")
	sign := fs.Bool("sign", false, "sign the manifest")
	keyPath := fs.String("key", "", "private key PEM (with --sign)")
	concurrency := fs.Int("concurrency", runtime.NumCPU(), "maximum concurrent file hashes")
	metricsFlag := fs.Bool("metrics", false, "print hashing throughput metrics")
	progressFlag := fs.Bool("progress", false, "display hashing progress updates")
	fs.Parse(args)

	if *payload == "" {
		fmt.Println("required: --payload")
		os.Exit(2)
	}
	if *ver == "" {
		fmt.Println("required: --version")
		os.Exit(2)
	}
	if *sign && *keyPath == "" {
		fmt.Println("--sign requires --key")
		os.Exit(2)
	}

	metrics, stopProgress := startMetrics(*metricsFlag, *progressFlag)
	m, err := manifest.Build(*payload, *ver, manifest.BuildOptions{
		Concurrency: *concurrency,
		Metrics:     metrics,
	})
	finishMetrics(metrics, stopProgress, *metricsFlag)
	if err != nil {
		fmt.Println("build manifest:", err)
		os.Exit(2)
	}

	if *sign {
		priv, err := crypto.LoadPrivateKey(*keyPath)
		if err != nil {
			fmt.Println("load key:", err)
			os.Exit(2)
		}
		sig, err := crypto.Sign(m.CanonicalBytes(), priv)
		if err != nil {
			fmt.Println("sign manifest:", err)
			os.Exit(2)
		}
		m = m.WithSignature(sig)
	}
	if err := manifest.Save(m, *out); err != nil {
		fmt.Println("write manifest:", err)
		os.Exit(2)
	}
	fmt.Printf("manifest %s: %d files, version %s, fingerprint %s\n", *out, len(m.Files), m.Version, m.Fingerprint())
}

func validateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	zipPath := fs.String("zip", "", "payload archive")
	manifestPath := fs.String("manifest", "", "signed manifest")
	pubPath := fs.String("public-key", "", "publisher public key PEM")
	strict := fs.Bool("strict", false, "treat extra archive files as a failure")
	reportPath := fs.String("report", "", "report JSON output")
	findingsPath := fs.String("findings", "", "findings NDJSON output")
	pdfPath := fs.String("pdf", "", "report PDF output")
	langFlag := fs.String("lang", "en", "report language (en, de)")
	concurrency := fs.Int("concurrency", runtime.NumCPU(), "maximum concurrent entry hashes")
	metricsFlag := fs.Bool("metrics", false, "print hashing throughput metrics")
	progressFlag := fs.Bool("progress", false, "display hashing progress updates")
	fs.Parse(args)

	if *zipPath == "" || *manifestPath == "" {
		fmt.Println("required: --zip and --manifest")
		os.Exit(2)
	}
	if *pubPath == "" {
		fmt.Println("required: --public-key")
		os.Exit(2)
	}
	lang, err := report.ParseLanguage(*langFlag)
	if err != nil {
		fmt.Println("language:", err)
		os.Exit(2)
	}
	pub, err := crypto.LoadPublicKey(*pubPath)
	if err != nil {
		fmt.Println("load public key:", err)
		os.Exit(2)
	}

	metrics, stopProgress := startMetrics(*metricsFlag, *progressFlag)
	res, verr := validate.Files(*manifestPath, *zipPath, pub, validate.Options{
		Strict:      *strict,
		Concurrency: *concurrency,
		Metrics:     metrics,
	})
	finishMetrics(metrics, stopProgress, *metricsFlag)

	rep := report.New(res, verr)
	if *reportPath != "" {
		if err := report.SaveJSON(rep, *reportPath); err != nil {
			fmt.Println("write report:", err)
			os.Exit(2)
		}
	}
	if *findingsPath != "" {
		if err := report.SaveFindingsNDJSON(rep, *findingsPath); err != nil {
			fmt.Println("write findings:", err)
			os.Exit(2)
		}
	}
	if *pdfPath != "" {
		if err := report.SavePDF(rep, lang, *pdfPath); err != nil {
			fmt.Println("write pdf:", err)
			os.Exit(2)
		}
	}

	if verr != nil {
		fmt.Printf("FAIL: %v\n", verr)
		os.Exit(1)
	}
	fmt.Printf("PASS: version %s, fingerprint %s\n", res.Version, res.Fingerprint)
	if res.ExtraWarning() {
		fmt.Fprintf(os.Stderr, "WARNING: %d file(s) in archive not listed in manifest\n", len(res.Extra))
		for _, p := range res.Extra {
			fmt.Fprintf(os.Stderr, "  extra: %s\n", p)
		}
	}
}

func installCmd(args []string) {
	fs := flag.NewFlagSet("install", flag.ExitOnError)
	zipPath := fs.String("zip", "", "payload archive")
	manifestPath := fs.String("manifest", "", "signed manifest")
	pubPath := fs.String("public-key", "", "publisher public key PEM")
	root := fs.String("root", "", "install root directory")
	strict := fs.Bool("strict", false, "treat extra archive files as a failure")
	concurrency := fs.Int("concurrency", runtime.NumCPU(), "maximum concurrent entry hashes")
	fs.Parse(args)

	if *zipPath == "" || *manifestPath == "" {
		fmt.Println("required: --zip and --manifest")
		os.Exit(2)
	}
	if *pubPath == "" || *root == "" {
		fmt.Println("required: --public-key and --root")
		os.Exit(2)
	}
	pub, err := crypto.LoadPublicKey(*pubPath)
	if err != nil {
		fmt.Println("load public key:", err)
		os.Exit(2)
	}
	installer, err := update.NewInstaller(update.Options{
		InstallRoot: *root,
		PublicKey:   pub,
		Strict:      *strict,
		Concurrency: *concurrency,
	})
	if err != nil {
		fmt.Println("installer:", err)
		os.Exit(2)
	}
	res, err := installer.Install(*zipPath, *manifestPath)
	if err != nil {
		fmt.Println("install:", err)
		os.Exit(1)
	}
	if res.PreviousVersion != "" {
		fmt.Printf("installed %s (was %s) at %s\n", res.Version, res.PreviousVersion, res.ReleasePath)
	} else {
		fmt.Printf("installed %s at %s\n", res.Version, res.ReleasePath)
	}
	for _, p := range res.ExtraFiles {
		fmt.Printf("  extra: %s\n", p)
	}
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	in := fs.String("in", "", "report JSON input")
	pdfPath := fs.String("pdf", "report.pdf", "report PDF output")
	langFlag := fs.String("lang", "en", "report language (en, de)")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(2)
	}
	lang, err := report.ParseLanguage(*langFlag)
	if err != nil {
		fmt.Println("language:", err)
		os.Exit(2)
	}
	rep, err := report.LoadJSON(*in)
	if err != nil {
		fmt.Println("load report:", err)
		os.Exit(2)
	}
	if err := report.SavePDF(rep, lang, *pdfPath); err != nil {
		fmt.Println("write pdf:", err)
		os.Exit(2)
	}
	fmt.Printf("wrote %s\n", *pdfPath)
}

func startMetrics(metricsFlag, progressFlag bool) (*common.Metrics, func()) {
	if !metricsFlag && !progressFlag {
		return nil, nil
	}
	metrics := common.NewMetrics()
	metrics.Start()
	var stop func()
	if progressFlag {
		stop = common.StartProgressPrinter(os.Stderr, metrics, 500*time.Millisecond)
	}
	return metrics, stop
}

func finishMetrics(metrics *common.Metrics, stopProgress func(), metricsFlag bool) {
	if stopProgress != nil {
		stopProgress()
	}
	if metrics == nil {
		return
	}
	metrics.Stop()
	if !metricsFlag {
		return
	}
	snap := metrics.Snapshot()
	mbPerSec := snap.ThroughputBytesPerSecond() / 1_000_000
	fmt.Printf("Metrics: duration=%s files=%d hashed=%s throughput=%.2f MB/s\n",
		snap.Duration.Round(10*time.Millisecond),
		snap.Files,
		common.FormatBytes(snap.Bytes),
		mbPerSec,
	)
}
