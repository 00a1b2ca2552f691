package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bep/debounce"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"go-phrase/config"
	"go-phrase/debug"
	"go-phrase/errs"
	"go-phrase/notation"
	"go-phrase/sequencer"
	"go-phrase/song"
)

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", ":8080", "listen address")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine behind an HTTP API",
	Long: `serve keeps an engine running and accepts patterns over HTTP:

  POST /play    {"pattern": "do re mi", "loop": true, "channel": 0}
  POST /stop
  POST /panic
  POST /song    YAML song document
  GET  /tracks
  PUT  /bpm     {"bpm": 100}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		e := startEngine(ctx)
		defer e.Shutdown()

		srv := &http.Server{Addr: serveAddr, Handler: newServer(e, configPath).routes()}
		go func() {
			<-ctx.Done()
			shutdown, done := context.WithTimeout(context.Background(), time.Second)
			defer done()
			srv.Shutdown(shutdown)
		}()
		debug.Logger().Info("listening", "addr", serveAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

// configSaveDelay groups bursts of tempo changes into one config write
const configSaveDelay = 500 * time.Millisecond

type server struct {
	engine   *sequencer.Engine
	path     string
	debounce func(func())
}

func newServer(e *sequencer.Engine, path string) *server {
	return &server{engine: e, path: path, debounce: debounce.New(configSaveDelay)}
}

func (s *server) routes() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/play", s.handlePlay).Methods("POST")
	router.HandleFunc("/stop", s.handleStop).Methods("POST")
	router.HandleFunc("/panic", s.handlePanic).Methods("POST")
	router.HandleFunc("/song", s.handleSong).Methods("POST")
	router.HandleFunc("/tracks", s.handleTracks).Methods("GET")
	router.HandleFunc("/bpm", s.handleBPM).Methods("PUT")

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
	})
	return c.Handler(router)
}

type playRequest struct {
	Pattern    string `json:"pattern"`
	Channel    int    `json:"channel"`
	Instrument *int   `json:"instrument"`
	Loop       bool   `json:"loop"`
	LoopType   string `json:"loopType"`
	Port       string `json:"port"`
	Transpose  int    `json:"transpose"`
}

type trackInfo struct {
	Name     string `json:"name"`
	Channel  int    `json:"channel"`
	Playing  bool   `json:"playing"`
	Muted    bool   `json:"muted"`
	Index    int    `json:"index"`
	Items    int    `json:"items"`
	Parent   string `json:"parent,omitempty"`
	Symbolic string `json:"last,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errs.Is(err, errs.InvalidPitch), errs.Is(err, errs.InvalidGroup),
		errs.Is(err, errs.InvalidModifier), errs.Is(err, errs.InvalidSong),
		errs.Is(err, errs.EmptyScale):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	opts := sequencer.DefaultPlayOptions()
	opts.Channel = req.Channel
	opts.Loop = req.Loop
	opts.LoopType = sequencer.ParseLoopType(req.LoopType)
	opts.Port = req.Port
	opts.Transpose = req.Transpose
	if req.Instrument != nil {
		opts.Instrument = *req.Instrument
	}

	var item any
	if req.Pattern != "" {
		if _, _, err := notation.Parse(req.Pattern); err != nil {
			writeError(w, err)
			return
		}
		item = req.Pattern
	}
	if err := s.engine.Play(item, opts); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"playing": true})
}

func (s *server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.engine.Stop()
	writeJSON(w, http.StatusOK, map[string]bool{"playing": false})
}

func (s *server) handlePanic(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"noteOffs": s.engine.Panic()})
}

func (s *server) handleSong(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	sg, err := song.Parse(data)
	if err != nil {
		writeError(w, err)
		return
	}
	tracks, err := sg.Apply(s.engine)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"tracks": len(tracks)})
}

func (s *server) handleTracks(w http.ResponseWriter, r *http.Request) {
	out := []trackInfo{}
	for _, t := range s.engine.Group().Sorted() {
		info := trackInfo{
			Name:    t.Name,
			Channel: t.Channel(),
			Playing: t.Playing(),
			Muted:   t.Muted(),
			Index:   t.Index(),
			Items:   len(t.Items()),
		}
		if p := t.Parent(); p != nil {
			info.Parent = p.Name
		}
		if last := t.Last(); last != nil {
			info.Symbolic = last.Symbolic
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleBPM(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BPM float64 `json:"bpm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BPM <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bpm must be a positive number"})
		return
	}
	s.engine.SetBPM(req.BPM)
	s.debounce(s.saveConfig)
	writeJSON(w, http.StatusOK, map[string]float64{"bpm": s.engine.BPM()})
}

func (s *server) saveConfig() {
	if err := config.Current().Save(s.path); err != nil {
		debug.Warn("serve", "save config: %v", err)
	}
}
