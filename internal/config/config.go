package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	JWTSecret                 string
	JWTRefreshSecret          string
	Database                  DatabaseConfig
	Scheduling                SchedulingConfig
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	AppURL                    string
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// SchedulingConfig holds the knobs of the consultation scheduling engine.
type SchedulingConfig struct {
	WorkingHourStart    int     // first bookable hour of the day, local time
	WorkingHourEnd      int     // slots are generated strictly before this hour
	SlotMinutes         int     // slot grid step and implicit slot duration
	StartGraceMinutes   int     // video may start this many minutes before the scheduled time
	OverdueGraceMinutes int     // consultation counts as overdue this long past its end
	DefaultFee          float64 // used when the doctor has no configured fee
	WeeklyLoadHours     float64 // booked hours over 7 days above which a doctor is flagged busy
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load database configuration
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "pulmocare"),
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168")) // 7 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	defaultFee, err := strconv.ParseFloat(getEnv("CONSULTATION_DEFAULT_FEE", "50"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CONSULTATION_DEFAULT_FEE: %w", err)
	}

	weeklyLoadHours, err := strconv.ParseFloat(getEnv("DOCTOR_WEEKLY_LOAD_HOURS", "40"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DOCTOR_WEEKLY_LOAD_HOURS: %w", err)
	}

	workingHourStart, err := getEnvInt("WORKING_HOUR_START", 9)
	if err != nil {
		return nil, err
	}
	workingHourEnd, err := getEnvInt("WORKING_HOUR_END", 17)
	if err != nil {
		return nil, err
	}
	slotMinutes, err := getEnvInt("SLOT_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	startGrace, err := getEnvInt("VIDEO_START_GRACE_MINUTES", 5)
	if err != nil {
		return nil, err
	}
	overdueGrace, err := getEnvInt("OVERDUE_GRACE_MINUTES", 15)
	if err != nil {
		return nil, err
	}

	schedulingConfig := SchedulingConfig{
		WorkingHourStart:    workingHourStart,
		WorkingHourEnd:      workingHourEnd,
		SlotMinutes:         slotMinutes,
		StartGraceMinutes:   startGrace,
		OverdueGraceMinutes: overdueGrace,
		DefaultFee:          defaultFee,
		WeeklyLoadHours:     weeklyLoadHours,
	}

	// Return complete configuration
	return &Config{
		Port:                      getEnv("PORT", "3001"),
		Origin:                    getEnv("ORIGIN", "http://localhost:4200"),
		Environment:               getEnv("APP_ENV", "development"),
		JWTSecret:                 getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		Database:                  dbConfig,
		Scheduling:                schedulingConfig,
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		AppURL:                    getEnv("APP_URL", "http://localhost:3001"),
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) (int, error) {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
