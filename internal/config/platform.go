package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
)

// PlatformFile формат файла настроек платформы.
type PlatformFile struct {
	FeeRateBps         int64         `yaml:"fee_rate_bps"`
	DisputePeriod      time.Duration `yaml:"dispute_period"`
	TreasuryAccount    string        `yaml:"treasury_account"`
	AutoReleaseEnabled *bool         `yaml:"auto_release_enabled"`
	MaxMilestones      int           `yaml:"max_milestones"`
	Listing            struct {
		MinPrice        uint64        `yaml:"min_price"`
		MaxPrice        uint64        `yaml:"max_price"`
		MinDeliveryTime time.Duration `yaml:"min_delivery_time"`
		MaxDeliveryTime time.Duration `yaml:"max_delivery_time"`
		MaxRevisionsCap int           `yaml:"max_revisions_cap"`
	} `yaml:"listing"`
}

func defaultPlatformFile() PlatformFile {
	var f PlatformFile
	f.FeeRateBps = 250
	f.DisputePeriod = 168 * time.Hour
	f.MaxMilestones = 10
	f.Listing.MinPrice = 1
	f.Listing.MinDeliveryTime = time.Hour
	f.Listing.MaxDeliveryTime = 90 * 24 * time.Hour
	f.Listing.MaxRevisionsCap = 5
	return f
}

// LoadPlatform читает настройки платформы из YAML. Отсутствующий файл не
// ошибка: берутся значения по умолчанию и переменные окружения.
func LoadPlatform(path string) (entity.PlatformPolicy, error) {
	f := defaultPlatformFile()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &f); err != nil {
				return entity.PlatformPolicy{}, fmt.Errorf("config: разбор %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return entity.PlatformPolicy{}, fmt.Errorf("config: чтение %s: %w", path, err)
		}
	}

	if err := applyPlatformEnv(&f); err != nil {
		return entity.PlatformPolicy{}, err
	}
	return f.Policy()
}

func applyPlatformEnv(f *PlatformFile) error {
	if v, ok := os.LookupEnv("PLATFORM_FEE_RATE_BPS"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: PLATFORM_FEE_RATE_BPS: %w", err)
		}
		f.FeeRateBps = n
	}
	if v, ok := os.LookupEnv("PLATFORM_DISPUTE_PERIOD"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: PLATFORM_DISPUTE_PERIOD: %w", err)
		}
		f.DisputePeriod = d
	}
	if v, ok := os.LookupEnv("PLATFORM_TREASURY_ACCOUNT"); ok {
		f.TreasuryAccount = v
	}
	if v, ok := os.LookupEnv("PLATFORM_AUTO_RELEASE_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: PLATFORM_AUTO_RELEASE_ENABLED: %w", err)
		}
		f.AutoReleaseEnabled = &b
	}
	if v, ok := os.LookupEnv("PLATFORM_MAX_MILESTONES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: PLATFORM_MAX_MILESTONES: %w", err)
		}
		f.MaxMilestones = n
	}
	return nil
}

// Policy проверяет настройки и переводит их в политику платформы.
func (f PlatformFile) Policy() (entity.PlatformPolicy, error) {
	rate, err := valueobject.NewBasisPoints(f.FeeRateBps)
	if err != nil {
		return entity.PlatformPolicy{}, fmt.Errorf("config: fee_rate_bps: %w", err)
	}
	if f.DisputePeriod <= 0 {
		return entity.PlatformPolicy{}, errors.New("config: dispute_period должен быть положительным")
	}
	treasury, err := uuid.Parse(f.TreasuryAccount)
	if err != nil || treasury == uuid.Nil {
		return entity.PlatformPolicy{}, errors.New("config: treasury_account должен быть непустым UUID")
	}
	if f.MaxMilestones <= 0 {
		return entity.PlatformPolicy{}, errors.New("config: max_milestones должен быть положительным")
	}
	l := f.Listing
	if l.MaxPrice > 0 && l.MaxPrice < l.MinPrice {
		return entity.PlatformPolicy{}, errors.New("config: listing.max_price меньше min_price")
	}
	if l.MaxDeliveryTime > 0 && l.MaxDeliveryTime < l.MinDeliveryTime {
		return entity.PlatformPolicy{}, errors.New("config: listing.max_delivery_time меньше min_delivery_time")
	}
	if l.MaxRevisionsCap < 0 {
		return entity.PlatformPolicy{}, errors.New("config: listing.max_revisions_cap не может быть отрицательным")
	}

	autoRelease := true
	if f.AutoReleaseEnabled != nil {
		autoRelease = *f.AutoReleaseEnabled
	}

	return entity.PlatformPolicy{
		FeeRate:            rate,
		DisputePeriod:      f.DisputePeriod,
		AutoReleaseEnabled: autoRelease,
		Treasury:           treasury,
		MaxMilestones:      f.MaxMilestones,
		Listing: entity.ListingLimits{
			MinPrice:        valueobject.Amount(l.MinPrice),
			MaxPrice:        valueobject.Amount(l.MaxPrice),
			MinDeliveryTime: l.MinDeliveryTime,
			MaxDeliveryTime: l.MaxDeliveryTime,
			MaxRevisions:    l.MaxRevisionsCap,
		},
	}, nil
}
