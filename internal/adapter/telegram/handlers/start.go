package handlers

const startText = `запущено

/jobs - активные задачи
/logs <id> - журнал задачи
/cancel <id> - остановить задачу
/ping - проверка связи`
