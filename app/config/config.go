package config

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Generation GenerationConfig `mapstructure:"generation"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Reaper     ReaperConfig     `mapstructure:"reaper"`
}

type ServerConfig struct {
	Port        string `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	WorkerToken string `mapstructure:"worker_token"` // 生成节点回调使用的共享令牌
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json 或 text
	Output     string `mapstructure:"output"`      // stdout 或 file
	Dir        string `mapstructure:"dir"`         // 日志目录
	MaxSize    int    `mapstructure:"max_size"`    // 兆字节
	MaxBackups int    `mapstructure:"max_backups"` // 备份数量
	MaxAge     int    `mapstructure:"max_age"`     // 天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧文件
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`      // JWT 密钥
	ExpireTime int    `mapstructure:"expire_time"` // 过期时间（小时）
	Issuer     string `mapstructure:"issuer"`      // 签发者
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"` // sqlite 文件路径
}

type QueueConfig struct {
	Driver   string         `mapstructure:"driver"` // database, redis, rabbitmq 或 http
	Redis    RedisConfig    `mapstructure:"redis"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	HTTP     HTTPQueue      `mapstructure:"http"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"` // 投递使用的列表键
}

type RabbitMQConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

type HTTPQueue struct {
	Endpoint string `mapstructure:"endpoint"` // 生成节点接收任务的地址
	Token    string `mapstructure:"token"`
	Timeout  int    `mapstructure:"timeout"` // 秒
}

type ReaperConfig struct {
	Embedded bool   `mapstructure:"embedded"`  // 是否在 server 进程内运行
	Schedule string `mapstructure:"schedule"`  // cron 表达式
	StaleAge int    `mapstructure:"stale_age"` // 提交中超过多少分钟视为卡住
	Batch    int    `mapstructure:"batch"`
}

func Load() *Config {
	setDefaults()

	// 读取配置
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("未找到配置文件，使用默认配置")
		} else {
			log.Fatalf("读取配置文件出错: %v", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("无法解码配置: %v", err)
	}

	// 验证配置
	if err := validateConfig(&config); err != nil {
		log.Fatalf("配置验证失败: %v", err)
	}

	return &config
}

// setDefaults 设置默认配置
func setDefaults() {
	viper.SetDefault("server.port", "5000")

	// 日志默认配置
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.dir", "data/logs")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	// JWT默认配置
	viper.SetDefault("jwt.secret", "your-secret-key-change-in-production")
	viper.SetDefault("jwt.expire_time", 24) // 24小时
	viper.SetDefault("jwt.issuer", "prompt-studio")

	viper.SetDefault("database.path", "data/prompt-studio.db")

	// 队列默认配置
	viper.SetDefault("queue.driver", QueueDriverDatabase)
	viper.SetDefault("queue.redis.addr", "127.0.0.1:6379")
	viper.SetDefault("queue.redis.key", "prompt_studio:submit_prompt_task")
	viper.SetDefault("queue.rabbitmq.queue", "submit_prompt_task")
	viper.SetDefault("queue.http.timeout", 10)

	// 卡住任务回收
	viper.SetDefault("reaper.embedded", true)
	viper.SetDefault("reaper.schedule", "*/5 * * * *")
	viper.SetDefault("reaper.stale_age", 15)
	viper.SetDefault("reaper.batch", 100)

	setGenerationDefaults()
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("服务器端口未设置")
	}
	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT密钥未设置")
	}
	switch config.Queue.Driver {
	case QueueDriverDatabase, QueueDriverRedis, QueueDriverRabbitMQ, QueueDriverHTTP:
	default:
		return fmt.Errorf("不支持的队列驱动: %s", config.Queue.Driver)
	}
	if config.Queue.Driver == QueueDriverHTTP && config.Queue.HTTP.Endpoint == "" {
		return fmt.Errorf("http 队列未设置 endpoint")
	}
	if config.Queue.Driver == QueueDriverRabbitMQ && config.Queue.RabbitMQ.URL == "" {
		return fmt.Errorf("rabbitmq 队列未设置 url")
	}
	return config.Generation.Validate()
}

// 队列驱动
const (
	QueueDriverDatabase = "database"
	QueueDriverRedis    = "redis"
	QueueDriverRabbitMQ = "rabbitmq"
	QueueDriverHTTP     = "http"
)
