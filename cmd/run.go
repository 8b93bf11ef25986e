package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zomco/hubot-heyodo/internal/bus"
	"github.com/zomco/hubot-heyodo/internal/config"
	"github.com/zomco/hubot-heyodo/internal/lane"
	"github.com/zomco/hubot-heyodo/internal/platform"
	redisconn "github.com/zomco/hubot-heyodo/internal/redis"
	"github.com/zomco/hubot-heyodo/internal/relay"
	"github.com/zomco/hubot-heyodo/internal/replies"
	"github.com/zomco/hubot-heyodo/internal/session"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the platform and serve",
	RunE:  runBot,
}

var configFile string

func init() {
	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "Config file path")
	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Bot.Token == "" {
		return fmt.Errorf("no bot token configured; run 'heyodo init' and fill in %s", config.GetConfigPath())
	}

	catalog, err := replies.Load(cfg.RepliesFile)
	if err != nil {
		return fmt.Errorf("loading replies: %w", err)
	}

	fmt.Printf("🤖 Starting heyodo as @%s...\n", cfg.Bot.Name)

	store := makeStore(cfg)
	msgBus := bus.NewMessageBus()

	api := platform.NewClient(cfg.Bot.APIBase, cfg.Bot.Token)
	rtm := platform.NewRTM(cfg.Bot.RTMURL+"?token="+cfg.Bot.Token, msgBus)
	api.SetReplyWriter(rtm)

	ctrl := relay.NewController(cfg, api, store, catalog, msgBus.PublishReply)

	lanes := lane.NewManager(ctrl.HandleEvent)
	defer lanes.Stop()

	msgBus.SubscribeReplies(func(r bus.Reply) {
		deliverReply(api, r)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		rtm.Stop()
		cancel()
	}()

	go msgBus.DispatchReplies(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-msgBus.Inbound:
				if ev.IsPrivate() {
					// Same-sender private events must stay ordered; the
					// lane serializes them while channel traffic is
					// stateless and handled inline.
					if err := lanes.Submit(ctx, ev); err != nil {
						log.Printf("[Run] submit failed: %v", err)
					}
				} else {
					ctrl.HandleEvent(ctx, ev)
				}
			}
		}
	}()

	return rtm.Start(ctx)
}

// makeStore picks Redis-backed session state when configured and
// reachable, otherwise in-memory.
func makeStore(cfg config.Config) session.Store {
	ttl := time.Duration(cfg.Session.TTLMinutes) * time.Minute
	if client := redisconn.Connect(cfg.Redis); client != nil {
		log.Println("[Run] session store: redis")
		return session.NewRedisStore(client, ttl)
	}
	log.Println("[Run] session store: memory")
	return session.NewMemoryStore(ttl)
}

// deliverReply sends one queued reply through the web API.
func deliverReply(api platform.API, r bus.Reply) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	text := r.Text
	if r.MentionUID != "" {
		text = "@<=" + r.MentionUID + "=> : " + text
	}

	var err error
	if len(r.Attachments) > 0 {
		err = api.SendAttachment(ctx, r.VChannelID, text, r.Attachments)
	} else {
		err = api.SendPlain(ctx, r.VChannelID, text)
	}
	if err != nil {
		log.Printf("[Run] reply to %s failed: %v", r.VChannelID, err)
	}
}
