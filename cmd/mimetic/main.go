// Command mimetic drives a Blossom robot from live camera pose
// mirroring: frames are fanned out to the face and pose detectors,
// fused, smoothed, and forwarded to the robot's HTTP endpoint. A small
// web dashboard exposes status, calibration and a live state feed.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/blossom-robotics/go-mimetic/internal/config"
	"github.com/blossom-robotics/go-mimetic/internal/log"
	"github.com/blossom-robotics/go-mimetic/pkg/blossom"
	"github.com/blossom-robotics/go-mimetic/pkg/camera"
	"github.com/blossom-robotics/go-mimetic/pkg/detect"
	"github.com/blossom-robotics/go-mimetic/pkg/fusion"
	"github.com/blossom-robotics/go-mimetic/pkg/mimetic"
	"github.com/blossom-robotics/go-mimetic/pkg/motion"
	"github.com/blossom-robotics/go-mimetic/pkg/web"
)

func main() {
	godotenv.Load()
	log.Init(config.LogLevel())

	mirror := config.MirrorVideo()

	camCfg := camera.DefaultConfig()
	camCfg.Index = config.CameraIndex()
	source := camera.NewSource(camCfg)
	if err := source.Start(); err != nil {
		log.Error("camera start failed", "error", err)
		os.Exit(1)
	}

	yunetCfg := detect.DefaultYuNetConfig(config.ModelDir())
	yunetCfg.Mirror = mirror
	face, err := detect.NewYuNet(yunetCfg)
	if err != nil {
		log.Error("face detector init failed", "error", err)
		source.Stop()
		os.Exit(1)
	}

	pose, err := detect.NewHOG()
	if err != nil {
		log.Error("pose detector init failed", "error", err)
		face.Close()
		source.Stop()
		os.Exit(1)
	}

	buffer := fusion.NewBuffer(fusion.DefaultConfig())
	dispatch := detect.NewDispatch(buffer.Add, face, pose)
	smoother := motion.NewSmoother(motion.DefaultConfig())

	slots := mimetic.NewSlotTable()
	one := blossom.NewSender(blossom.DefaultConfig(config.BlossomHost(), config.BlossomPort()))
	if err := slots.Attach(mimetic.SlotOne, one); err != nil {
		log.Error("attach primary sender", "error", err)
	}
	if port, ok := config.BlossomTwoPort(); ok {
		two := blossom.NewSender(blossom.DefaultConfig(config.BlossomHost(), port))
		if err := slots.Attach(mimetic.SlotTwo, two); err != nil {
			log.Error("attach second sender", "error", err)
		}
	}

	sessCfg := mimetic.DefaultConfig()
	sessCfg.Mirror = mirror
	session := mimetic.NewSession(sessCfg, source, dispatch, buffer, smoother, slots)

	server := web.NewServer(config.WebPort(), session, buffer)
	session.OnSnapshot = server.PublishSnapshot
	server.StartAsync()

	if err := session.Start(); err != nil {
		log.Error("session start failed", "error", err)
		session.Stop()
		os.Exit(1)
	}

	if os.Getenv("CALIBRATE_ON_START") == "true" {
		if err := session.Calibrate(); err != nil {
			log.Error("calibration failed", "error", err)
			session.Stop()
			os.Exit(1)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	session.Stop()
	server.Shutdown()
}
