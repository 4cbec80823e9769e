package constants

// Deployment layout shared by the runner and the bootstrapper
const (
	// WorkerService is the compose service that ad-hoc scripts are forwarded into
	WorkerService = "airflow-worker"

	// EnvFile is the settings file written by setup, relative to the project root
	EnvFile = ".env"

	// ScriptsDir holds the ad-hoc scripts on the host, relative to the project root
	ScriptsDir = "scripts"

	// ContainerScriptsDir is where ScriptsDir is mounted inside the worker
	ContainerScriptsDir = "/opt/airflow/scripts"

	// ContainerDagsDir is where the dags directory is mounted inside the worker
	ContainerDagsDir = "/opt/airflow/dags"

	// DefaultAirflowUID is used when the host has no numeric user id
	DefaultAirflowUID = "50000"
)

// ComposeFiles are the names docker compose looks for in the project root, in
// its lookup order
var ComposeFiles = []string{"compose.yaml", "compose.yml", "docker-compose.yaml", "docker-compose.yml"}

// ProjectDirs are created by setup under the project root
var ProjectDirs = []string{"dags", "logs", "plugins", "config", "scripts", "data"}
