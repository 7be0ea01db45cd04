// Package main provides the remote-control CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/19player/internal/api/rest"
	"github.com/osa030/19player/internal/app/notification"
	"github.com/osa030/19player/internal/app/session"
)

var (
	app     = kingpin.New("19player-ctl", "19player remote control")
	server  = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token   = app.Flag("token", "API token (or set PLAYER_API_TOKEN env)").Envar("PLAYER_API_TOKEN").String()
	retries = app.Flag("retries", "Retries for failed requests").Default("2").Int()

	stateCmd = app.Command("state", "Show the playback state").Alias("status")
	queueCmd = app.Command("queue", "Show the queue")

	playCmd     = app.Command("play", "Start playback")
	pauseCmd    = app.Command("pause", "Pause playback")
	toggleCmd   = app.Command("toggle", "Toggle play/pause")
	nextCmd     = app.Command("next", "Play the next track")
	previousCmd = app.Command("previous", "Restart or play the previous track").Alias("prev")
	shuffleCmd  = app.Command("shuffle", "Toggle shuffle")
	repeatCmd   = app.Command("repeat", "Cycle the repeat mode")
	muteCmd     = app.Command("mute", "Toggle mute")

	seekCmd      = app.Command("seek", "Seek to a fraction of the track")
	seekFraction = seekCmd.Arg("fraction", "Position between 0 and 1").Required().Float64()

	volumeCmd   = app.Command("volume", "Set the volume")
	volumeLevel = volumeCmd.Arg("level", "Volume between 0 and 1").Required().Float64()

	keyCmd  = app.Command("key", "Send a key press")
	keyName = keyCmd.Arg("name", "Key name (space, left, right, up, down, n, p, s, r, m)").Required().String()

	loadCmd      = app.Command("load", "Build a queue and start playing")
	loadContext  = loadCmd.Flag("context", "Queue context").Default("library").Enum("library", "playlist", "search")
	loadPlaylist = loadCmd.Flag("playlist", "Playlist ID").String()
	loadQuery    = loadCmd.Flag("query", "Search query").String()
	loadTrack    = loadCmd.Arg("track-id", "Track to start from").String()

	tracksCmd   = app.Command("tracks", "List or search library tracks")
	tracksQuery = tracksCmd.Arg("query", "Search query").String()

	playlistsCmd = app.Command("playlists", "List playlists")

	watchCmd = app.Command("watch", "Print notifications as they arrive")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := rest.NewClient(*server, rest.WithToken(*token), rest.WithRetries(*retries))
	ctx := context.Background()

	var (
		state *rest.StateResponse
		err   error
	)

	// Execute command
	switch command {
	case stateCmd.FullCommand():
		state, err = client.State(ctx)
	case queueCmd.FullCommand():
		err = printQueue(ctx, client)
	case playCmd.FullCommand():
		state, err = client.Command(ctx, rest.CommandPlay)
	case pauseCmd.FullCommand():
		state, err = client.Command(ctx, rest.CommandPause)
	case toggleCmd.FullCommand():
		state, err = client.Command(ctx, rest.CommandToggle)
	case nextCmd.FullCommand():
		state, err = client.Command(ctx, rest.CommandNext)
	case previousCmd.FullCommand():
		state, err = client.Command(ctx, rest.CommandPrevious)
	case shuffleCmd.FullCommand():
		state, err = client.Command(ctx, rest.CommandShuffle)
	case repeatCmd.FullCommand():
		state, err = client.Command(ctx, rest.CommandRepeat)
	case muteCmd.FullCommand():
		state, err = client.Command(ctx, rest.CommandMute)
	case seekCmd.FullCommand():
		state, err = client.Seek(ctx, *seekFraction)
	case volumeCmd.FullCommand():
		state, err = client.SetVolume(ctx, *volumeLevel)
	case keyCmd.FullCommand():
		state, err = client.Key(ctx, *keyName)
	case loadCmd.FullCommand():
		state, err = client.Load(ctx, rest.LoadRequest{
			Context:    session.Context(*loadContext),
			PlaylistID: *loadPlaylist,
			Query:      *loadQuery,
			TrackID:    *loadTrack,
		})
	case tracksCmd.FullCommand():
		err = printTracks(ctx, client, *tracksQuery)
	case playlistsCmd.FullCommand():
		err = printPlaylists(ctx, client)
	case watchCmd.FullCommand():
		err = watch(client)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if state != nil {
		printState(state)
	}
}

func printState(s *rest.StateResponse) {
	v := s.View
	fmt.Printf("State: %s\n", v.State)
	if s.Track == nil {
		fmt.Println("Track: (none)")
	} else {
		fmt.Printf("Track: %s - %s [%s]\n", s.Track.Artist, s.Track.Title, s.Track.ID)
		fmt.Printf("Position: %s / %s (%d/%d in queue)\n", v.Elapsed, v.Total, v.QueueIndex+1, v.QueueLen)
	}
	shuffle := "off"
	if v.Shuffle {
		shuffle = "on"
	}
	fmt.Printf("Shuffle: %s  %s  Volume: %d%% (%s)\n", shuffle, v.RepeatLabel, int(v.Volume*100+0.5), v.VolumeTier)
}

func printQueue(ctx context.Context, client *rest.Client) error {
	q, err := client.Queue(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Context: %s", q.Context)
	switch {
	case q.PlaylistID != "":
		fmt.Printf(" (playlist %s)", q.PlaylistID)
	case q.Query != "":
		fmt.Printf(" (query %q)", q.Query)
	}
	fmt.Println()
	for i, t := range q.Tracks {
		marker := "  "
		if i == q.CurrentIndex {
			marker = "▶ "
		}
		fmt.Printf("%s%3d. %s - %s [%s]\n", marker, i+1, t.Artist, t.Title, t.ID)
	}
	return nil
}

func printTracks(ctx context.Context, client *rest.Client, query string) error {
	tracks, err := client.Tracks(ctx, query)
	if err != nil {
		return err
	}
	for _, t := range tracks {
		fmt.Printf("%-20s %s - %s\n", t.ID, t.Artist, t.Title)
	}
	return nil
}

func printPlaylists(ctx context.Context, client *rest.Client) error {
	playlists, err := client.Playlists(ctx)
	if err != nil {
		return err
	}
	for _, p := range playlists {
		fmt.Printf("%-20s %s (%d tracks)\n", p.ID, p.Name, p.TrackCount)
	}
	return nil
}

// watch prints notifications until interrupted.
func watch(client *rest.Client) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return client.Watch(ctx, func(n *notification.Notification) {
		switch n.Type {
		case notification.TypeToast:
			fmt.Printf("[%d] toast: %s\n", n.SequenceNo, n.Message)
		case notification.TypeTrackChanged, notification.TypeInitialState:
			if n.Track != nil {
				fmt.Printf("[%d] %s: %s - %s\n", n.SequenceNo, n.Type, n.Track.Artist, n.Track.Title)
			} else {
				fmt.Printf("[%d] %s: (no track)\n", n.SequenceNo, n.Type)
			}
		default:
			if n.View != nil {
				fmt.Printf("[%d] %s %s / %s\n", n.SequenceNo, n.View.State, n.View.Elapsed, n.View.Total)
			}
		}
	})
}
