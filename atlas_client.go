package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/atlas-sdk/v20250312005/admin"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"
)

type AtlasClient struct {
	AtlasSDK *admin.APIClient
}

func NewAtlasClient(sdk *admin.APIClient) *AtlasClient {
	if sdk == nil {
		cfg, err := GetConfig()
		if err != nil {
			Logger.Error("Error getting config")
			panic(err)
		}
		sdk, err = admin.NewClient(admin.UseDigestAuth(cfg.AtlasPublicKey, cfg.AtlasPrivateKey))
		if err != nil {
			Logger.Error("Error creating Atlas SDK client")
			panic(err)
		}
	}

	return &AtlasClient{
		AtlasSDK: sdk,
	}
}

func (c *AtlasClient) GetAtlasClusterInfo(ctx context.Context, projectID, clusterName string) (*admin.ClusterDescription20240805, error) {
	params := &admin.GetClusterApiParams{
		GroupId:     projectID,
		ClusterName: clusterName,
	}
	desc, response, err := c.AtlasSDK.ClustersApi.GetClusterWithParams(ctx, params).Execute()
	if err != nil {
		Logger.Error("Failed to get cluster info: ", err)
		return nil, err
	}
	if response.StatusCode != http.StatusOK {
		Logger.Error("Cluster info request not OK")
		return nil, fmt.Errorf("cluster info returned a non-200 response: %d", response.StatusCode)
	}
	return desc, nil
}

func (c *AtlasClient) DeleteClusterLogs(ctx context.Context, logFiles []string) error {
	var errs []string
	for _, logFile := range logFiles {
		if err := os.Remove(logFile); err != nil {
			// Log the error and continue, since we want to try deleting all files
			errStr := fmt.Sprintf("failed to delete log file %s: %v", logFile, err)
			Logger.Error(errStr)
			errs = append(errs, errStr)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("encountered errors during log cleanup:\n%s", strings.Join(errs, "\n"))
	}
	Logger.Info("Cleaned up temporary log files")
	return nil
}

func (c *AtlasClient) DownloadClusterLogs(ctx context.Context, projectID, clusterName string, startDate int64, endDate int64) (map[string]string, error) {
	// TODO: Support sharded clusters!
	Logger.Info("Downloading Atlas cluster logs")
	var hostLogMapping = make(map[string]string)
	info, err := c.GetAtlasClusterInfo(ctx, projectID, clusterName)
	if err != nil {
		return nil, fmt.Errorf("failed to get cluster info: %w", err)
	}
	hosts, _, err := GetHostsFromConnectionString(*info.ConnectionStrings.Standard)
	if err != nil {
		return nil, fmt.Errorf("failed to get hosts from connection string: %w", err)
	}
	var logFiles []string
	var mu sync.Mutex
	var wg sync.WaitGroup
	errChan := make(chan error, len(hosts))
	hostLogMappingChan := make(chan struct {
		host    string
		logFile string
	}, len(hosts))

	for _, host := range hosts {
		wg.Add(1)
		go func(host string) {
			defer wg.Done()
			Logger.WithFields(logrus.Fields{"host": host}).Info("Downloading logs for host")
			logFile, err := c.GetClusterLogsForHost(ctx, projectID, host, &startDate, &endDate)
			if err != nil {
				errChan <- fmt.Errorf("failed to download logs for host %s: %w", host, err)
				return
			}
			hostLogMappingChan <- struct {
				host    string
				logFile string
			}{host, logFile}
			mu.Lock()
			logFiles = append(logFiles, logFile)
			mu.Unlock()
		}(host)
	}

	wg.Wait()
	close(errChan)
	close(hostLogMappingChan)

	if len(errChan) > 0 {
		_ = c.DeleteClusterLogs(ctx, logFiles)
		return nil, <-errChan
	}

	for entry := range hostLogMappingChan {
		hostLogMapping[entry.host] = entry.logFile
	}
	return hostLogMapping, nil
}

func GetHostsFromConnectionString(connectionString string) ([]string, []string, error) {
	cs, err := connstring.Parse(connectionString)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cs.Scheme == "mongodb+srv" {
		// For SRV records, the host is the only part we need
		return cs.Hosts, nil, nil
	}

	hosts := make([]string, 0, len(cs.Hosts))
	ports := make([]string, 0, len(cs.Hosts))
	for _, hostPort := range cs.Hosts {
		host, port, err := net.SplitHostPort(hostPort)
		if err != nil {
			// Handle cases like "localhost" where port is missing
			if addrErr, ok := err.(*net.AddrError); ok && strings.Contains(addrErr.Err, "missing port") {
				host = hostPort
			} else {
				return nil, nil, fmt.Errorf("failed to split host and port from '%s': %w", hostPort, err)
			}
		}
		hosts = append(hosts, host)
		ports = append(ports, port)
	}

	return hosts, ports, nil
}

func (c *AtlasClient) GetClusterLogsForHost(ctx context.Context, projectID, host string, startDate *int64, endDate *int64) (string, error) {
	params := &admin.GetHostLogsApiParams{
		GroupId:   projectID,
		HostName:  host,
		LogName:   "mongodb",
		StartDate: startDate,
		EndDate:   endDate,
	}
	log, response, err := c.AtlasSDK.MonitoringAndLogsApi.GetHostLogsWithParams(ctx, params).Execute()
	if err != nil {
		Logger.Error("Failed to get host logs: ", err)
		return "", err
	}
	if response.StatusCode != http.StatusOK {
		Logger.Error("Host log request not OK")
		return "", fmt.Errorf("host logs returned a non-200 response: %d", response.StatusCode)
	}

	tmpFile, err := os.CreateTemp("", fmt.Sprintf("mongod_%s_%d_%d_*.log.gz", host, *startDate, *endDate))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tmpFile.Close()
	defer log.Close()

	_, err = io.Copy(tmpFile, log)
	if err != nil {
		return "", fmt.Errorf("failed to write log file: %w", err)
	}
	return tmpFile.Name(), nil
}

// AtlasTelemetrySource feeds the pipeline from downloaded Atlas mongod
// logs instead of system.profile.
type AtlasTelemetrySource struct {
	client      *AtlasClient
	projectID   string
	clusterName string
	window      time.Duration
}

func NewAtlasTelemetrySource(client *AtlasClient, projectID, clusterName string, window time.Duration) *AtlasTelemetrySource {
	return &AtlasTelemetrySource{
		client:      client,
		projectID:   projectID,
		clusterName: clusterName,
		window:      window,
	}
}

func (s *AtlasTelemetrySource) FetchEntries(ctx context.Context) ([]bson.M, error) {
	if s.window <= 0 {
		return nil, fmt.Errorf("a positive time window is required to download Atlas cluster logs")
	}
	now := time.Now()
	start := now.Add(-s.window).Unix()
	end := now.Unix()
	hostLogMapping, err := s.client.DownloadClusterLogs(ctx, s.projectID, s.clusterName, start, end)
	if err != nil {
		return nil, err
	}
	fileReader := &DefaultFileReader{}
	var entries []bson.M
	var logFiles []string
	for host, logFile := range hostLogMapping {
		logFiles = append(logFiles, logFile)
		parsed, err := ParseSlowQueryLog(fileReader, logFile)
		if err != nil {
			Logger.WithFields(logrus.Fields{"host": host}).
				Warn("Failed to parse host log: ", err)
			continue
		}
		entries = append(entries, parsed...)
	}
	_ = s.client.DeleteClusterLogs(ctx, logFiles)
	return entries, nil
}
