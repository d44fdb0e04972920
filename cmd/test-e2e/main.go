package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"formvoice/agent/internal/types"
)

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/stt", "Agent websocket URL")
	grpcAddr := flag.String("grpc", "localhost:9090", "Agent gRPC health address (empty to skip)")
	formID := flag.String("form", "", "Registered form ID")
	token := flag.String("token", "", "Session token from POST /forms/{id}/sessions")
	pcmPath := flag.String("pcm", "", "16kHz mono s16le PCM or WAV file to stream")
	chunk := flag.Int("chunk", 3200, "Bytes per binary frame")
	realtime := flag.Bool("realtime", true, "Pace frames at audio speed")
	timeout := flag.Duration("timeout", 60*time.Second, "Overall timeout")
	flag.Parse()

	if *formID == "" || *pcmPath == "" {
		log.Fatalf("-form and -pcm are required")
	}
	pcm, err := os.ReadFile(*pcmPath)
	if err != nil {
		log.Fatalf("read pcm: %v", err)
	}
	if strings.HasSuffix(strings.ToLower(*pcmPath), ".wav") && len(pcm) > 44 {
		pcm = pcm[44:]
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Printf("=== E2E Voice Form Test ===\n")
	fmt.Printf("Form: %s\nAudio: %s (%d bytes)\n\n", *formID, *pcmPath, len(pcm))

	if *grpcAddr != "" {
		fmt.Println("[1] Checking gRPC health...")
		if err := checkHealth(ctx, *grpcAddr); err != nil {
			log.Fatalf("health: %v", err)
		}
	}

	fmt.Println("[2] Connecting...")
	target := *serverURL + "?form_id=" + url.QueryEscape(*formID)
	if *token != "" {
		target += "&token=" + url.QueryEscape(*token)
	}
	c, _, err := ws.Dial(ctx, target, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer c.Close(ws.StatusNormalClosure, "done")

	// Start receiver goroutine
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var cmd types.Command
			if err := wsjson.Read(ctx, c, &cmd); err != nil {
				if ws.CloseStatus(err) == ws.StatusNormalClosure || ctx.Err() != nil {
					return
				}
				fmt.Printf("\n[ws] read error: %v\n", err)
				return
			}
			printCommand(cmd)
		}
	}()

	fmt.Println("[3] Streaming audio...")
	frameDur := time.Duration(float64(*chunk) / 32000 * float64(time.Second))
	for off := 0; off < len(pcm); off += *chunk {
		end := off + *chunk
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := c.Write(ctx, ws.MessageBinary, pcm[off:end]); err != nil {
			log.Fatalf("write: %v", err)
		}
		if *realtime {
			time.Sleep(frameDur)
		}
	}
	// Trailing silence so the last utterance flushes
	silence := make([]byte, *chunk)
	for i := 0; i < 30; i++ {
		if err := c.Write(ctx, ws.MessageBinary, silence); err != nil {
			break
		}
		time.Sleep(frameDur)
	}

	fmt.Println("[4] Waiting for commands (ctrl-c or timeout to stop)...")
	<-done
	fmt.Println("\n=== Test Complete ===")
}

func checkHealth(ctx context.Context, addr string) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return err
	}
	fmt.Printf("    status: %s\n", resp.GetStatus())
	return nil
}

func printCommand(cmd types.Command) {
	switch cmd.Type {
	case types.CmdFillField:
		fmt.Printf("  [fill] %s = %q\n", cmd.Field, cmd.Value)
	case types.CmdClarify:
		fmt.Printf("  [clarify] %s: %s\n", cmd.Field, cmd.Message)
	default:
		fmt.Printf("  [%s] %+v\n", cmd.Type, cmd)
	}
}
