package services

import (
	"sort"

	"go.uber.org/zap"

	"db-schema-keeper/internal/models"
)

// orderModelsByDependencies sorts models so that every referenced table is
// created before the tables pointing at it. Self references are ignored,
// references to undeclared tables are skipped, and members of a cycle are
// flagged HasCircular and keep their relative input order.
func orderModelsByDependencies(ms []models.Model, logger *zap.Logger) ([]models.Model, []models.TableDependency) {
	depMap := make(map[string]*models.TableDependency, len(ms))
	for _, m := range ms {
		depMap[m.TableName] = &models.TableDependency{
			TableName: m.TableName,
			DependsOn: []string{},
		}
	}

	for _, m := range ms {
		for _, fk := range m.ForeignKeys {
			if fk.ReferencedTableName == m.TableName {
				continue
			}
			if _, exists := depMap[fk.ReferencedTableName]; !exists {
				logger.Debug("Foreign key references undeclared table",
					zap.String("table", m.TableName),
					zap.String("references", fk.ReferencedTableName))
				continue
			}
			depMap[m.TableName].DependsOn = append(depMap[m.TableName].DependsOn, fk.ReferencedTableName)
		}
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	// Level = max(dependency levels) + 1
	var calculateLevel func(string) int
	calculateLevel = func(table string) int {
		if recStack[table] {
			depMap[table].HasCircular = true
			logger.Warn("Circular dependency detected", zap.String("table", table))
			return 0
		}
		if visited[table] {
			return depMap[table].Level
		}

		visited[table] = true
		recStack[table] = true

		dep := depMap[table]
		maxDepLevel := 0
		for _, depTable := range dep.DependsOn {
			if depLevel := calculateLevel(depTable); depLevel+1 > maxDepLevel {
				maxDepLevel = depLevel + 1
			}
		}

		recStack[table] = false
		dep.Level = maxDepLevel
		return maxDepLevel
	}

	for _, m := range ms {
		if !visited[m.TableName] {
			calculateLevel(m.TableName)
		}
	}

	ordered := make([]models.Model, len(ms))
	copy(ordered, ms)
	sort.SliceStable(ordered, func(i, j int) bool {
		return depMap[ordered[i].TableName].Level < depMap[ordered[j].TableName].Level
	})

	deps := make([]models.TableDependency, 0, len(ordered))
	for _, m := range ordered {
		deps = append(deps, *depMap[m.TableName])
	}
	return ordered, deps
}
