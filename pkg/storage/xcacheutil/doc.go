// Package xcacheutil 在 xtier 之上提供平台缓存接口形状的适配层。
//
// # 组成
//
//   - [Adapter]：以 any 为值类型包装一个 xtier.Cache，提供 Get/Put/Set/Insert/Invalidate 等入口。
//     Put 接受的优先级、TTL、共享策略、依赖 ID 不参与任何逻辑，条目存活时间由代际轮转决定。
//   - [Factory]：按名称创建与共享缓存，支持按 cron 表达式定期清空全部缓存。
//   - [FileConfig]：YAML/JSON 配置文件，通过 [LoadConfig] / [ParseConfig] 加载。
//   - [Watcher]：监视配置文件，变更后把新配置应用到 Factory（创建、调整、移除缓存）。
//
// # 基本用法
//
//	f, err := xcacheutil.NewFactory(xcacheutil.WithInvalidationSchedule("@every 1h"))
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	users, err := f.Initialize("user.search", 1000, 4000, 20*time.Minute)
//	if err != nil {
//	    return err
//	}
//	if v, ok := users.Get("uid=alice"); ok {
//	    return v.(*Entry), nil
//	}
//	entry := search("uid=alice")
//	_, _ = users.Set("uid=alice", entry)
//
// # 热更新
//
//	cfg, err := xcacheutil.LoadConfig("/etc/app/caches.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := f.Apply(cfg); err != nil {
//	    return err
//	}
//	w, err := xcacheutil.Watch("/etc/app/caches.yaml", f)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	w.StartAsync()
package xcacheutil
