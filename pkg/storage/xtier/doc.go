// Package xtier 提供三代（primary/secondary/tertiary）近似 LRU 的进程内缓存。
//
// # 设计
//
// Cache 同时持有三张代际表：primary 保存最近写入的条目，secondary 次之，
// tertiary 最旧。一次轮转（[Cache.EvictStaleEntries]）丢弃 tertiary，
// secondary 变为 tertiary，primary 变为 secondary，再换上一张空表作为 primary。
// 轮转只交换表的句柄，与条目数量无关。
//
// 轮转由两种条件触发：
//   - 容量：写入前三代总占用 >= CapacityLimit 时，先轮转一次再写入
//   - 定时：Period > 0 时后台每 Period/3 轮转一次
//
// 因此一个条目在最后一次写入后，最多存活约两到三个轮转间隔。
// 这是近似 LRU：同一代内的条目不区分先后，会被一起淘汰。
//
// # 写入语义
//
//   - [Cache.Insert]：无条件写入 primary，并从旧的代中移除（提升）
//   - [Cache.Update] / [Cache.Put]：key 已存在时在其所在的代原地替换，不提升；
//     不存在时写入 primary
//   - [Cache.Remove]：从所在的代中删除
//
// 任一时刻一个 key 最多出现在一代中。
//
// # 未命中预留
//
// Get 未命中时会在 primary 中为该 key 预留一个空槽位（best-effort，写锁繁忙时跳过），
// 后续 Update 直接原地填充。空槽位对 Size/ContainsKey/Keys 等查询不可见，
// 但计入容量占用。可通过 [WithoutMissReservation] 关闭。
//
// # 并发
//
// 写操作（Insert/Update/Remove/轮转/清空）由一把缓存级互斥锁串行化。
// 读操作通过一次原子加载拿到三代快照，不会看到轮转进行到一半的状态；
// 代际表内部分片加读写锁，读操作与其他 key 的写入互不阻塞。
//
// # 容量上界
//
// 每次写入最多触发一次轮转，占用可能短暂超过 CapacityLimit，
// 但任何操作完成后 Size 不超过 CapacityLimit+2。
//
// # 生命周期
//
// [New] 创建即可用的实例；Period > 0 时同时启动后台轮转。
// [Cache.StopEviction] 停止后台轮转（幂等），[Cache.Close] 额外注销观测指标。
// 关闭后缓存仍可读写，只是不再定时淘汰。
//
// # 共享语义
//
// 缓存不复制值，Get 返回的值与写入方共享同一引用。
package xtier
