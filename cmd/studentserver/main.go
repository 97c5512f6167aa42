package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kjk/studentdb/backup"
	"github.com/kjk/studentdb/httplogger"
	"github.com/kjk/studentdb/log"
	"github.com/kjk/studentdb/server"
	"github.com/kjk/studentdb/store"
	"github.com/kjk/studentdb/u"
	"github.com/tidwall/pretty"
)

var (
	flgAddr     string
	flgWWW      string
	flgDB       string
	flgLogDir   string
	flgEnv      string
	flgVerbose  bool
	flgCompress bool
	flgDump     bool
)

func parseFlags() {
	flag.StringVar(&flgAddr, "addr", ":8080", "address to listen on")
	flag.StringVar(&flgWWW, "www", "www-data", "directory with static files and page templates")
	flag.StringVar(&flgDB, "db", "db.txt", "file with records, compressed with zstd if it ends with .zst")
	flag.StringVar(&flgLogDir, "logdir", "logs", "directory for log files")
	flag.StringVar(&flgEnv, "env", ".env", "file with BACKUP_* settings")
	flag.BoolVar(&flgVerbose, "verbose", false, "log every request")
	flag.BoolVar(&flgCompress, "compress", false, "serve text files compressed with br or zstd")
	flag.BoolVar(&flgDump, "dump", false, "print all records as json and exit")
	flag.Parse()
}

// loadEnv returns nil if the file doesn't exist
func loadEnv(path string) (map[string]string, error) {
	if !u.FileExists(path) {
		return nil, nil
	}
	d, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return u.ParseEnv(d)
}

func dumpRecords(w io.Writer, st *store.Store) error {
	records := st.Records()
	if records == nil {
		records = []*store.Record{}
	}
	d, err := json.Marshal(records)
	if err != nil {
		return err
	}
	_, err = w.Write(pretty.Pretty(d))
	return err
}

// setupBackup restores the store file if it's missing locally and
// uploads it after every save. Returns nil if backup is not configured.
func setupBackup(ctx context.Context, env map[string]string, st *store.Store) (*backup.Uploader, error) {
	config := backup.ConfigFromEnv(env)
	if config == nil {
		log.Logf("backup not configured, BACKUP_BUCKET not set\n")
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	client, err := backup.New(ctx, config)
	if err != nil {
		return nil, err
	}
	path := st.AbsPath()
	if !u.FileExists(path) {
		err = client.Restore(ctx, path)
		switch {
		case err == nil:
			log.Logf("restored '%s' (%d bytes) from backup\n", path, u.FileSize(path))
		case errors.Is(err, backup.ErrNotFound):
			log.Logf("no backup of '%s' yet\n", path)
		default:
			return nil, err
		}
	}
	up := backup.NewUploader(client, path)
	st.OnSaved = func(string) {
		up.Notify()
	}
	return up, nil
}

// hiddenFiles lists files that must not be served even if -www
// points at the directory they are in
func hiddenFiles(dbPath string, envPath string) []string {
	return []string{filepath.Base(dbPath), filepath.Base(envPath)}
}

func main() {
	parseFlags()
	log.Verbose = flgVerbose

	st := &store.Store{Path: flgDB}
	u.Must(store.Open(st))

	if flgDump {
		u.Must(dumpRecords(os.Stdout, st))
		return
	}

	log.Init(&log.Config{Dir: flgLogDir})
	defer log.Close()

	if !u.DirExists(flgWWW) {
		log.Errorf("directory '%s' doesn't exist\n", flgWWW)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := loadEnv(flgEnv)
	u.Must(err)
	uploader, err := setupBackup(ctx, env, st)
	u.Must(err)

	httpLog, err := httplogger.New(filepath.Join(flgLogDir, "httplog"), nil)
	u.Must(err)

	srv := &server.Server{
		Root:            os.DirFS(flgWWW),
		Store:           st,
		HiddenFiles:     hiddenFiles(st.AbsPath(), flgEnv),
		ServeCompressed: flgCompress,
		RequestLog:      httpLog,
	}
	ln, err := net.Listen("tcp", flgAddr)
	u.Must(err)
	fmt.Printf("Serving '%s' on http://%s, records in '%s'\n", flgWWW, ln.Addr(), st.AbsPath())
	err = srv.Serve(ctx, ln)
	log.IfErrf(err)

	if uploader != nil {
		// wait for pending upload of the last save
		uploader.Close()
	}
	log.IfErrf(httpLog.Close())
	log.Logf("stopped\n")
}
