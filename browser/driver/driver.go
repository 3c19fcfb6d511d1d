// Package driver opens the browser session named by the configuration.
package driver

import (
	"context"
	"errors"
	"fmt"

	"tbreport/browser"
	"tbreport/browser/pwdriver"
	"tbreport/browser/roddriver"
	"tbreport/config"
	"tbreport/logger"
)

// ErrUnknownDriver is returned for a driver name other than playwright or rod.
var ErrUnknownDriver = errors.New("unknown browser driver")

// Open launches the configured driver.
func Open(ctx context.Context, cfg config.BrowserConfig, log logger.Logger) (browser.Session, error) {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With(logger.String("driver", cfg.Driver))
	log.Info("launching browser", logger.Bool("headless", cfg.Headless))

	switch cfg.Driver {
	case config.DriverPlaywright, "":
		s, err := pwdriver.Launch(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverRod:
		s, err := roddriver.Launch(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
}
